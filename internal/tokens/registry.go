// internal/tokens/registry.go
package tokens

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
)

// ValidateAddress checks an address against its chain's format.
func ValidateAddress(chain domain.Chain, address string) error {
	switch chain {
	case domain.ChainSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return domain.Invalid("address", "not a valid solana address")
		}
	case domain.ChainEthereum:
		if !common.IsHexAddress(address) {
			return domain.Invalid("address", "not a valid ethereum address")
		}
	default:
		return domain.Invalid("chain", "must be solana or ethereum")
	}
	return nil
}

// Registry справочник отслеживаемых токенов.
type Registry struct {
	store  storage.TokenStore
	logger *zap.Logger
}

func NewRegistry(store storage.TokenStore, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger.Named("tokens")}
}

func (r *Registry) ListTokens(ctx context.Context, category domain.Category) ([]domain.TrackedToken, error) {
	if category != "" && !category.Valid() {
		return nil, domain.Invalid("category", "unknown category")
	}
	return r.store.ListTokens(ctx, storage.TokenFilter{Category: category})
}

func (r *Registry) GetToken(ctx context.Context, address string) (*domain.TrackedToken, error) {
	if address == "" {
		return nil, domain.Invalid("address", "")
	}
	return r.store.GetToken(ctx, address)
}

// UpdateATH stores a new recorded all-time-high. Callers are responsible
// for authorization.
func (r *Registry) UpdateATH(ctx context.Context, address string, price float64) error {
	if address == "" {
		return domain.Invalid("tokenAddress", "")
	}
	if price < 0 {
		return domain.Invalid("athPrice", "must not be negative")
	}
	if err := r.store.UpdateATH(ctx, address, price); err != nil {
		return err
	}
	r.logger.Info("ATH updated", zap.String("token", address), zap.Float64("ath_price", price))
	return nil
}

// Register validates and upserts a token.
func (r *Registry) Register(ctx context.Context, t domain.TrackedToken) error {
	t.Address = strings.TrimSpace(t.Address)
	if t.Chain == "" {
		t.Chain = domain.ChainSolana
	}
	if t.Category == "" {
		t.Category = domain.CategoryOthers
	}
	if err := ValidateAddress(t.Chain, t.Address); err != nil {
		return err
	}
	if !t.Category.Valid() {
		return domain.Invalid("category", "unknown category")
	}
	if t.Symbol == "" {
		return domain.Invalid("symbol", "")
	}
	if t.ATHPrice < 0 {
		return domain.Invalid("athPrice", "must not be negative")
	}
	return r.store.UpsertToken(ctx, t)
}

type seedFile struct {
	Tokens []domain.TrackedToken `yaml:"tokens"`
}

// LoadSeed reads a YAML token list and registers every valid entry.
// Invalid entries are logged and skipped.
func (r *Registry) LoadSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("failed to read token seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse token seed: %w", err)
	}

	loaded := 0
	for _, t := range seed.Tokens {
		if err := r.Register(ctx, t); err != nil {
			r.logger.Warn("skipping seed token", zap.String("address", t.Address), zap.Error(err))
			continue
		}
		loaded++
	}
	r.logger.Info("token seed loaded", zap.Int("tokens", loaded), zap.Int("skipped", len(seed.Tokens)-loaded))
	return loaded, nil
}
