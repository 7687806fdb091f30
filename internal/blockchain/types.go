// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          uint
}

// TokenBalance is an SPL balance in raw units with the mint's decimals.
type TokenBalance struct {
	Mint     string
	Amount   uint64
	Decimals uint8
}

// UI converts the raw amount to display units.
func (b TokenBalance) UI() decimal.Decimal {
	return decimal.NewFromUint64(b.Amount).Shift(-int32(b.Decimals))
}

// SignatureStatus is the on-chain outcome of a broadcast transaction.
type SignatureStatus struct {
	Signature solana.Signature
	Found     bool
	Confirmed bool
	Failed    bool
}

// Broadcaster submits already-signed transactions.
type Broadcaster interface {
	SubmitSignedTransaction(ctx context.Context, raw []byte) (solana.Signature, error)
}

// Client определяет интерфейс для взаимодействия с блокчейном.
type Client interface {
	Broadcaster
	// Баланс SOL в лампортах.
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	// Все SPL балансы владельца одним запросом.
	GetTokenBalances(ctx context.Context, owner solana.PublicKey) (map[string]TokenBalance, error)
	// Количество знаков после запятой у минта.
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	// Статусы подписей транзакций.
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]SignatureStatus, error)
}
