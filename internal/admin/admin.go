// internal/admin/admin.go
package admin

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Proof is a message signed by a wallet, both base58 encoded.
type Proof struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// ATHUpdate is the body of an admin ATH change.
type ATHUpdate struct {
	Proof
	TokenAddress string   `json:"tokenAddress"`
	ATHPrice     *float64 `json:"athPrice"`
}

// Authorizer проверяет, что запрос подписан кошельком администратора.
type Authorizer struct {
	admin solana.PublicKey
}

func NewAuthorizer(adminWallet string) (*Authorizer, error) {
	pk, err := solana.PublicKeyFromBase58(adminWallet)
	if err != nil {
		return nil, fmt.Errorf("invalid admin wallet %q: %w", adminWallet, err)
	}
	return &Authorizer{admin: pk}, nil
}

// Verify returns ErrNotAdmin when the key is not the admin wallet and
// ErrBadSignature when the signature does not verify over Message.
func (a *Authorizer) Verify(p Proof) error {
	if p.PublicKey != a.admin.String() {
		return domain.ErrNotAdmin
	}
	raw, err := base58.Decode(p.Signature)
	if err != nil || len(raw) != solana.SignatureLength {
		return domain.ErrBadSignature
	}
	sig := solana.SignatureFromBytes(raw)
	if !sig.Verify(a.admin, []byte(p.Message)) {
		return domain.ErrBadSignature
	}
	return nil
}

// ATHWriter persists a recorded all-time-high.
type ATHWriter interface {
	UpdateATH(ctx context.Context, address string, price float64) error
}

// Service is the only privileged mutation surface.
type Service struct {
	auth   *Authorizer
	tokens ATHWriter
	logger *zap.Logger
}

func NewService(auth *Authorizer, tokens ATHWriter, logger *zap.Logger) *Service {
	return &Service{auth: auth, tokens: tokens, logger: logger.Named("admin")}
}

// VerifyWallet checks an admin login proof.
func (s *Service) VerifyWallet(p Proof) error {
	if err := s.auth.Verify(p); err != nil {
		s.logger.Warn("admin verification rejected", zap.String("public_key", p.PublicKey), zap.Error(err))
		return err
	}
	return nil
}

// UpdateATH authorizes first and only then touches the token store.
func (s *Service) UpdateATH(ctx context.Context, req ATHUpdate) error {
	if err := s.VerifyWallet(req.Proof); err != nil {
		return err
	}
	if req.TokenAddress == "" {
		return domain.Invalid("tokenAddress", "")
	}
	if req.ATHPrice == nil {
		return domain.Invalid("athPrice", "")
	}
	if *req.ATHPrice < 0 {
		return domain.Invalid("athPrice", "must not be negative")
	}
	return s.tokens.UpdateATH(ctx, req.TokenAddress, *req.ATHPrice)
}
