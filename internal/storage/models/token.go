// internal/storage/models/token.go
package models

import "github.com/rovshanmuradov/memeswap/internal/domain"

type Token struct {
	BaseModel
	Address     string  `gorm:"uniqueIndex;not null;type:varchar(64)"`
	Name        string  `gorm:"not null;type:varchar(100)"`
	Symbol      string  `gorm:"not null;type:varchar(32)"`
	LogoURL     string  `gorm:"type:text"`
	Category    string  `gorm:"index;not null;type:varchar(16)"`
	Chain       string  `gorm:"not null;type:varchar(16)"`
	ATHPrice    float64 `gorm:"column:ath_price;type:double precision;not null;default:0"`
	PairAddress string  `gorm:"type:varchar(64)"`
}

func (t *Token) ToDomain() domain.TrackedToken {
	return domain.TrackedToken{
		Address:     t.Address,
		Name:        t.Name,
		Symbol:      t.Symbol,
		LogoURL:     t.LogoURL,
		Category:    domain.Category(t.Category),
		Chain:       domain.Chain(t.Chain),
		ATHPrice:    t.ATHPrice,
		PairAddress: t.PairAddress,
	}
}

func TokenFromDomain(t domain.TrackedToken) *Token {
	return &Token{
		Address:     t.Address,
		Name:        t.Name,
		Symbol:      t.Symbol,
		LogoURL:     t.LogoURL,
		Category:    string(t.Category),
		Chain:       string(t.Chain),
		ATHPrice:    t.ATHPrice,
		PairAddress: t.PairAddress,
	}
}
