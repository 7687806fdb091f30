// internal/domain/market.go
package domain

// MarketSnapshot is the canonical numeric view of a token's market at fetch
// time. Missing upstream values are zero, never NaN.
type MarketSnapshot struct {
	PairAddress string  `json:"pairAddress,omitempty"`
	Price       float64 `json:"price"`
	Change1h    float64 `json:"change1h"`
	Change24h   float64 `json:"change24h"`
	Volume24h   float64 `json:"volume24h"`
	MarketCap   float64 `json:"marketCap"`
	Liquidity   float64 `json:"liquidity"`
}

// HasPrice reports whether the snapshot carries a usable price.
func (s MarketSnapshot) HasPrice() bool {
	return s.Price > 0
}

// PriceInfo is the slice of market data the portfolio aggregator needs.
// Change24h is nil when no market data was available for the asset.
type PriceInfo struct {
	Price     float64  `json:"price"`
	Change24h *float64 `json:"change24h,omitempty"`
}
