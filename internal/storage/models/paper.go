// internal/storage/models/paper.go
package models

import "github.com/rovshanmuradov/memeswap/internal/domain"

type PaperHolding struct {
	BaseModel
	OwnerAddress string  `gorm:"uniqueIndex:idx_paper_owner_token;not null;type:varchar(64)"`
	TokenAddress string  `gorm:"uniqueIndex:idx_paper_owner_token;not null;type:varchar(64)"`
	Allocation   float64 `gorm:"not null;type:double precision"`
}

func (h PaperHolding) ToDomain() domain.PaperHolding {
	return domain.PaperHolding{TokenAddress: h.TokenAddress, Allocation: h.Allocation}
}
