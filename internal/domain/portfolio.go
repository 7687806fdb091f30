// internal/domain/portfolio.go
package domain

// Holding is a valued wallet position. Derived, never stored.
type Holding struct {
	Address    string   `json:"address"`
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Balance    float64  `json:"balance"`
	Price      float64  `json:"price"`
	USDValue   float64  `json:"usdValue"`
	ATHPrice   float64  `json:"athPrice"`
	ATHValue   float64  `json:"athValue"`
	Multiplier float64  `json:"multiplier"`
	Change24h  *float64 `json:"change24h,omitempty"`
}

// Portfolio is the sorted holdings list plus totals.
type Portfolio struct {
	Wallet        string    `json:"wallet"`
	Holdings      []Holding `json:"holdings"`
	TotalValue    float64   `json:"totalValue"`
	TotalATHValue float64   `json:"totalAthValue"`
	Multiplier    float64   `json:"multiplier"`
	Change24h     *float64  `json:"change24h"`
}

// PaperHolding is a hypothetical USD allocation to a tracked token.
type PaperHolding struct {
	TokenAddress string  `json:"tokenAddress"`
	Allocation   float64 `json:"allocation"`
}
