// internal/storage/models/swap.go
package models

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Swap строка журнала свопов. Суммы хранятся как numeric без потери точности.
type Swap struct {
	BaseModel
	WalletAddress    string          `gorm:"index;not null;type:varchar(64)"`
	PaymentCurrency  string          `gorm:"not null;type:varchar(64)"`
	SwapAmount       decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	TokenAddress     string          `gorm:"index;not null;type:varchar(64)"`
	TokenSymbol      string          `gorm:"type:varchar(32)"`
	TokenAmount      decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TokenPriceAtSwap decimal.Decimal `gorm:"column:token_price;type:numeric(38,18);not null;default:0"`
	FeeAmount        decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`
	TxSignature      string          `gorm:"uniqueIndex;not null;type:varchar(100)"`
	SwapType         string          `gorm:"not null;type:varchar(8)"`
	Status           string          `gorm:"index;not null;type:varchar(16)"`
}

func (s *Swap) ToDomain() domain.SwapRecord {
	return domain.SwapRecord{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		WalletAddress:    s.WalletAddress,
		PaymentCurrency:  s.PaymentCurrency,
		SwapAmount:       s.SwapAmount,
		TokenAddress:     s.TokenAddress,
		TokenSymbol:      s.TokenSymbol,
		TokenAmount:      s.TokenAmount,
		TokenPriceAtSwap: s.TokenPriceAtSwap,
		FeeAmount:        s.FeeAmount,
		TxSignature:      s.TxSignature,
		SwapType:         domain.SwapType(s.SwapType),
		Status:           domain.SwapStatus(s.Status),
	}
}

func SwapFromDomain(r *domain.SwapRecord) *Swap {
	return &Swap{
		WalletAddress:    r.WalletAddress,
		PaymentCurrency:  r.PaymentCurrency,
		SwapAmount:       r.SwapAmount,
		TokenAddress:     r.TokenAddress,
		TokenSymbol:      r.TokenSymbol,
		TokenAmount:      r.TokenAmount,
		TokenPriceAtSwap: r.TokenPriceAtSwap,
		FeeAmount:        r.FeeAmount,
		TxSignature:      r.TxSignature,
		SwapType:         string(r.SwapType),
		Status:           string(r.Status),
	}
}
