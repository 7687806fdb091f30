// internal/marketdata/types.go
package marketdata

import (
	"bytes"
	"math"
	"strconv"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Number принимает из JSON число, строку или null. Всё, что не разбирается,
// превращается в 0, NaN и бесконечности тоже.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// Response is the DexScreener envelope for /latest/dex endpoints.
type Response struct {
	SchemaVersion string `json:"schemaVersion"`
	Pair          *Pair  `json:"pair"`
	Pairs         []Pair `json:"pairs"`
}

// Pair содержит информацию о паре
type Pair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   TokenInfo `json:"baseToken"`
	QuoteToken  TokenInfo `json:"quoteToken"`
	PriceUSD    Number    `json:"priceUsd"`
	PriceChange struct {
		H1  Number `json:"h1"`
		H24 Number `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 Number `json:"h24"`
	} `json:"volume"`
	FDV       Number         `json:"fdv"`
	Liquidity *LiquidityInfo `json:"liquidity"`
}

type TokenInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type LiquidityInfo struct {
	USD Number `json:"usd"`
}

// LiquidityUSD treats a missing liquidity block as zero.
func (p *Pair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return float64(p.Liquidity.USD)
}

// Snapshot reduces the pair to the canonical record. FDV is used as market cap.
func (p *Pair) Snapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		PairAddress: p.PairAddress,
		Price:       float64(p.PriceUSD),
		Change1h:    float64(p.PriceChange.H1),
		Change24h:   float64(p.PriceChange.H24),
		Volume24h:   float64(p.Volume.H24),
		MarketCap:   float64(p.FDV),
		Liquidity:   p.LiquidityUSD(),
	}
}

// MostLiquid returns the pair with the greatest USD liquidity; the first pair
// wins ties. Nil when pairs is empty.
func MostLiquid(pairs []Pair) *Pair {
	var best *Pair
	for i := range pairs {
		if best == nil || pairs[i].LiquidityUSD() > best.LiquidityUSD() {
			best = &pairs[i]
		}
	}
	return best
}
