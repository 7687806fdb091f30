// internal/domain/swap.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SwapType string

const (
	SwapTypeBuy  SwapType = "buy"
	SwapTypeSell SwapType = "sell"
)

// SwapStatus статус записи в журнале свопов.
type SwapStatus string

const (
	SwapSubmitted SwapStatus = "submitted"
	SwapConfirmed SwapStatus = "confirmed"
	SwapFailed    SwapStatus = "failed"
)

// WalletAll disables the wallet predicate in history queries.
const WalletAll = "all"

// SwapRecord is an append-only ledger entry written right after broadcast.
type SwapRecord struct {
	ID               uint64          `json:"id"`
	CreatedAt        time.Time       `json:"createdAt"`
	WalletAddress    string          `json:"walletAddress"`
	PaymentCurrency  string          `json:"paymentCurrency"`
	SwapAmount       decimal.Decimal `json:"swapAmount"`
	TokenAddress     string          `json:"tokenAddress"`
	TokenSymbol      string          `json:"tokenSymbol"`
	TokenAmount      decimal.Decimal `json:"tokenAmount"`
	TokenPriceAtSwap decimal.Decimal `json:"tokenPrice"`
	FeeAmount        decimal.Decimal `json:"feeAmount"`
	TxSignature      string          `json:"txSignature"`
	SwapType         SwapType        `json:"swapType"`
	Status           SwapStatus      `json:"status"`
}

// HistoryFilter selects ledger entries. Empty fields are not applied.
type HistoryFilter struct {
	WalletAddress string
	TokenAddress  string
	Limit         int
}
