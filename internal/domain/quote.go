// internal/domain/quote.go
package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Direction of a trade relative to the tracked token.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// TradeIntent is what the user typed into a trade form.
type TradeIntent struct {
	Direction   Direction       `json:"direction"`
	PayMint     string          `json:"payMint"`
	TokenMint   string          `json:"tokenMint"`
	Amount      decimal.Decimal `json:"amount"`
	SlippageBps int             `json:"slippageBps"`
}

// Mints returns input and output mints for the intent's direction.
func (t TradeIntent) Mints() (input, output string) {
	if t.Direction == DirectionSell {
		return t.TokenMint, t.PayMint
	}
	return t.PayMint, t.TokenMint
}

// QuoteParams are the exact aggregator request parameters a quote was priced for.
type QuoteParams struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
}

// Quote is a routed swap proposal. Raw keeps the aggregator's response
// verbatim because the build call needs it back unchanged.
type Quote struct {
	InputMint          string          `json:"inputMint"`
	InAmount           string          `json:"inAmount"`
	OutputMint         string          `json:"outputMint"`
	OutAmount          string          `json:"outAmount"`
	SlippageBps        int             `json:"slippageBps"`
	PriceImpactPct     string          `json:"priceImpactPct"`
	RoutePlan          json.RawMessage `json:"routePlan,omitempty"`
	PlatformFeeAccount string          `json:"feeAccount,omitempty"`

	Params QuoteParams     `json:"-"`
	Raw    json.RawMessage `json:"-"`
}

// Matches reports whether q was produced for p. Anything else is stale.
func (q *Quote) Matches(p QuoteParams) bool {
	return q != nil && q.Params == p
}
