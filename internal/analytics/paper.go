// internal/analytics/paper.go
package analytics

import "github.com/rovshanmuradov/memeswap/internal/domain"

// PaperPortfolio is a list of hypothetical allocations, at most one per token.
type PaperPortfolio struct {
	Holdings []domain.PaperHolding
}

// Add allocates usd to token. A token already held gets the amounts summed.
func (p *PaperPortfolio) Add(token string, usd float64) {
	for i := range p.Holdings {
		if p.Holdings[i].TokenAddress == token {
			p.Holdings[i].Allocation += usd
			return
		}
	}
	p.Holdings = append(p.Holdings, domain.PaperHolding{TokenAddress: token, Allocation: usd})
}

// Remove drops token and reports whether it was held.
func (p *PaperPortfolio) Remove(token string) bool {
	for i := range p.Holdings {
		if p.Holdings[i].TokenAddress == token {
			p.Holdings = append(p.Holdings[:i:i], p.Holdings[i+1:]...)
			return true
		}
	}
	return false
}

// Allocation returns the USD allocated to token, zero when not held.
func (p *PaperPortfolio) Allocation(token string) float64 {
	for _, h := range p.Holdings {
		if h.TokenAddress == token {
			return h.Allocation
		}
	}
	return 0
}

// PaperPrice is what Totals needs to know about one token.
type PaperPrice struct {
	Symbol   string
	Price    float64
	ATHPrice float64
}

type PaperRow struct {
	domain.PaperHolding
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	ATHPrice   float64 `json:"athPrice"`
	Multiplier float64 `json:"multiplier"`
	ATHReturn  float64 `json:"athReturn"`
	Upside     Upside  `json:"upside"`
	// Priced is false when price or ATH is unknown; such rows show a 1x
	// multiplier and do not count towards TotalATHReturn.
	Priced bool `json:"priced"`
}

type PaperTotals struct {
	Holdings        []PaperRow `json:"holdings"`
	TotalAllocation float64    `json:"totalAllocation"`
	TotalATHReturn  float64    `json:"totalAthReturn"`
	// GainPct is TotalATHReturn over TotalAllocation, zero for an empty portfolio.
	GainPct float64 `json:"gainPct"`
}

// Totals values every holding at its ATH: allocation × ath/price.
func (p *PaperPortfolio) Totals(prices map[string]PaperPrice) PaperTotals {
	out := PaperTotals{Holdings: make([]PaperRow, 0, len(p.Holdings))}
	for _, h := range p.Holdings {
		px := prices[h.TokenAddress]
		row := PaperRow{
			PaperHolding: h,
			Symbol:       px.Symbol,
			Price:        px.Price,
			ATHPrice:     px.ATHPrice,
			Multiplier:   1,
			ATHReturn:    h.Allocation,
		}
		if px.Price > 0 && px.ATHPrice > 0 {
			row.Upside = UpsideToATH(h.Allocation, px.Price, px.ATHPrice)
			row.Multiplier = px.ATHPrice / px.Price
			row.ATHReturn = row.Upside.ATHValue
			row.Priced = true
			out.TotalATHReturn += row.ATHReturn
		} else {
			row.Upside = UpsideToATH(h.Allocation, 0, px.ATHPrice)
		}
		out.TotalAllocation += h.Allocation
		out.Holdings = append(out.Holdings, row)
	}
	if out.TotalAllocation > 0 {
		out.GainPct = (out.TotalATHReturn/out.TotalAllocation - 1) * 100
	}
	return out
}
