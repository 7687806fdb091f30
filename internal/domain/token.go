// internal/domain/token.go
package domain

import "strings"

// Category группирует мемкоины на витрине.
type Category string

const (
	CategoryDogs   Category = "dogs"
	CategoryCats   Category = "cats"
	CategoryFrogs  Category = "frogs"
	CategoryAI     Category = "ai"
	CategoryOthers Category = "others"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDogs, CategoryCats, CategoryFrogs, CategoryAI, CategoryOthers:
		return true
	}
	return false
}

// Chain identifies the network a token lives on.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
)

func (c Chain) Valid() bool {
	return c == ChainSolana || c == ChainEthereum
}

// Reference assets on Solana.
const (
	NativeMint = "So11111111111111111111111111111111111111112"
	USDCMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	NativeDecimals  = 9
	USDCDecimals    = 6
	DefaultDecimals = 6
)

// TrackedToken описывает токен, за которым следит платформа.
type TrackedToken struct {
	Address     string   `json:"address" yaml:"address"`
	Name        string   `json:"name" yaml:"name"`
	Symbol      string   `json:"symbol" yaml:"symbol"`
	LogoURL     string   `json:"logoUrl,omitempty" yaml:"logo_url"`
	Category    Category `json:"category" yaml:"category"`
	Chain       Chain    `json:"chain" yaml:"chain"`
	ATHPrice    float64  `json:"athPrice" yaml:"ath_price"`
	PairAddress string   `json:"pairAddress,omitempty" yaml:"pair_address"`
}

// MarketRef returns the identifier used for market-data lookups: the preferred
// pair when one is known, otherwise the token address.
func (t TrackedToken) MarketRef() (ref string, isPair bool) {
	if t.PairAddress != "" {
		return t.PairAddress, true
	}
	return t.Address, false
}

// Key is the case-insensitive join key used by batch market lookups.
func (t TrackedToken) Key() string {
	ref, _ := t.MarketRef()
	return strings.ToLower(ref)
}

// CurrencySymbol names a payment mint the way the ledger stores it.
func CurrencySymbol(mint string) string {
	switch mint {
	case NativeMint:
		return "SOL"
	case USDCMint:
		return "USDC"
	}
	return mint
}
