package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Input holds everything needed to value a wallet. Balances and Prices are
// keyed by mint address.
type Input struct {
	Wallet   string
	Balances map[string]decimal.Decimal
	Tokens   []domain.TrackedToken
	Prices   map[string]domain.PriceInfo
	SolPrice float64
}

// Build values the wallet. SOL and USDC are always present, tracked tokens
// only with a positive balance. Holdings are sorted by USD value, largest first.
func Build(in Input) domain.Portfolio {
	holdings := []domain.Holding{
		reference(domain.NativeMint, "SOL", "Solana", in.Balances[domain.NativeMint], in.SolPrice),
		reference(domain.USDCMint, "USDC", "USD Coin", in.Balances[domain.USDCMint], 1),
	}

	for _, t := range in.Tokens {
		if t.Address == domain.NativeMint || t.Address == domain.USDCMint {
			continue
		}
		bal, ok := in.Balances[t.Address]
		if !ok || !bal.IsPositive() {
			continue
		}
		balance := bal.InexactFloat64()
		info := in.Prices[t.Address]

		h := domain.Holding{
			Address:    t.Address,
			Symbol:     t.Symbol,
			Name:       t.Name,
			Balance:    balance,
			Price:      info.Price,
			USDValue:   balance * info.Price,
			ATHPrice:   t.ATHPrice,
			Multiplier: 1,
			Change24h:  info.Change24h,
		}
		if t.ATHPrice > 0 {
			h.ATHValue = balance * t.ATHPrice
		}
		if t.ATHPrice > 0 && info.Price > 0 {
			h.Multiplier = t.ATHPrice / info.Price
		}
		holdings = append(holdings, h)
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].USDValue > holdings[j].USDValue
	})

	p := domain.Portfolio{Wallet: in.Wallet, Holdings: holdings}
	var weighted, withChange float64
	for _, h := range holdings {
		p.TotalValue += h.USDValue
		if h.ATHValue > 0 {
			p.TotalATHValue += h.ATHValue
		} else {
			p.TotalATHValue += h.USDValue
		}
		if h.Change24h != nil && h.USDValue > 0 {
			weighted += *h.Change24h * h.USDValue
			withChange += h.USDValue
		}
	}

	denom := p.TotalValue
	if denom == 0 {
		denom = 1
	}
	p.Multiplier = p.TotalATHValue / denom

	if withChange > 0 {
		change := weighted / withChange
		p.Change24h = &change
	}
	return p
}

func reference(mint, symbol, name string, bal decimal.Decimal, price float64) domain.Holding {
	balance := bal.InexactFloat64()
	return domain.Holding{
		Address:    mint,
		Symbol:     symbol,
		Name:       name,
		Balance:    balance,
		Price:      price,
		USDValue:   balance * price,
		Multiplier: 1,
	}
}
