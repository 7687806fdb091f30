// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FeeAccount maps a payment mint to the account that collects the platform fee.
type FeeAccount struct {
	Mint    string `mapstructure:"mint"`
	Account string `mapstructure:"account"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	ListenAddr    string   `mapstructure:"listen_addr"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	RatePerMinute int      `mapstructure:"rate_per_minute"`

	RPCList          []string      `mapstructure:"rpc_list"`
	RPCTimeout       time.Duration `mapstructure:"rpc_timeout"`
	BroadcastRetries uint          `mapstructure:"broadcast_retries"`

	JupiterURL      string        `mapstructure:"jupiter_url"`
	DexScreenerURL  string        `mapstructure:"dexscreener_url"`
	CoinGeckoURL    string        `mapstructure:"coingecko_url"`
	CoinGeckoAPIKey string        `mapstructure:"coingecko_api_key"`
	GeckoTermURL    string        `mapstructure:"geckoterminal_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	AdminWallet         string        `mapstructure:"admin_wallet"`
	FeeAccounts         []FeeAccount  `mapstructure:"fee_accounts"`
	PlatformFeeBps      int           `mapstructure:"platform_fee_bps"`
	DefaultSlippageBps  int           `mapstructure:"default_slippage_bps"`
	QuoteDebounce       time.Duration `mapstructure:"quote_debounce"`
	PriorityLevel       string        `mapstructure:"priority_level"`
	PriorityMaxLamports uint64        `mapstructure:"priority_max_lamports"`

	PostgresURL   string `mapstructure:"postgres_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	ReconcileDropAfter time.Duration `mapstructure:"reconcile_drop_after"`
	SolFallbackPrice   float64       `mapstructure:"sol_fallback_price"`

	TokensFile  string `mapstructure:"tokens_file"`
	WalletsFile string `mapstructure:"wallets_file"`

	Log LogConfig `mapstructure:"log"`
}

const (
	DefaultPlatformFeeBps   = 100
	DefaultSlippageBps      = 300
	DefaultQuoteDebounce    = 500 * time.Millisecond
	DefaultRequestTimeout   = 15 * time.Second
	DefaultBroadcastRetries = 2
	DefaultSolFallbackPrice = 150

	maxBps = 10_000
)

// Кошелёк администратора и счета комиссий платформы.
const (
	DefaultAdminWallet = "7enA39APuzDhDD1da7nVmg1DjzJrVULBHN579VGEzFNU"
	wsolFeeAccount     = "HowcznAWAbUT5jzKxu4HMWY4sZyhavgwMk3kurHot4Li"
	usdcFeeAccount     = "55fNGd1rHyGVmmn7xMtScBNULp9bEDYuRVuezFKEBZPW"
	nativeMint         = "So11111111111111111111111111111111111111112"
	usdcMint           = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen_addr":           ":8080",
		"cors_origins":          []string{},
		"rate_per_minute":       600,
		"rpc_list":              []string{"https://api.mainnet-beta.solana.com"},
		"rpc_timeout":           "10s",
		"broadcast_retries":     DefaultBroadcastRetries,
		"jupiter_url":           "https://lite-api.jup.ag/swap/v1",
		"dexscreener_url":       "https://api.dexscreener.com",
		"coingecko_url":         "https://api.coingecko.com/api/v3",
		"geckoterminal_url":     "https://api.geckoterminal.com/api/v2",
		"coingecko_api_key":     "",
		"request_timeout":       DefaultRequestTimeout.String(),
		"admin_wallet":          DefaultAdminWallet,
		"platform_fee_bps":      DefaultPlatformFeeBps,
		"default_slippage_bps":  DefaultSlippageBps,
		"quote_debounce":        DefaultQuoteDebounce.String(),
		"priority_level":        "high",
		"priority_max_lamports": 1_000_000,
		"postgres_url":          "",
		"redis_addr":            "",
		"redis_password":        "",
		"redis_db":              0,
		"cache_ttl":             "2m",
		"poll_interval":         "60s",
		"reconcile_interval":    "0s",
		"reconcile_drop_after":  "10m",
		"sol_fallback_price":    DefaultSolFallbackPrice,
		"tokens_file":           "",
		"wallets_file":          "wallets.yaml",
		"log.file":              "memeswap.log",
		"log.max_size":          100,
		"log.max_age":           7,
		"log.max_backups":       3,
		"log.compress":          true,
		"log.development":       false,
		"fee_accounts": []map[string]string{
			{"mint": nativeMint, "account": wsolFeeAccount},
			{"mint": usdcMint, "account": usdcFeeAccount},
		},
	}
}

// LoadConfig reads path (optional), then .env and MEMESWAP_* variables on top.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("MEMESWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

// FeeAccountMap indexes fee accounts by mint.
func (c *Config) FeeAccountMap() map[string]string {
	out := make(map[string]string, len(c.FeeAccounts))
	for _, fa := range c.FeeAccounts {
		out[fa.Mint] = fa.Account
	}
	return out
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	for name, u := range map[string]string{
		"jupiter_url":       cfg.JupiterURL,
		"dexscreener_url":   cfg.DexScreenerURL,
		"coingecko_url":     cfg.CoinGeckoURL,
		"geckoterminal_url": cfg.GeckoTermURL,
	} {
		if err := validateURLWithCache(u, "http"); err != nil {
			return fmt.Errorf("invalid %s", name)
		}
	}
	if _, err := solana.PublicKeyFromBase58(cfg.AdminWallet); err != nil {
		return errors.New("admin_wallet is not a valid solana address")
	}
	for _, fa := range cfg.FeeAccounts {
		if _, err := solana.PublicKeyFromBase58(fa.Mint); err != nil {
			return fmt.Errorf("invalid fee account mint %q", fa.Mint)
		}
		if _, err := solana.PublicKeyFromBase58(fa.Account); err != nil {
			return fmt.Errorf("invalid fee account for mint %s", fa.Mint)
		}
	}
	switch cfg.PriorityLevel {
	case "medium", "high", "veryHigh":
	default:
		return errors.New("invalid priority_level")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > maxBps {
		return errors.New("invalid platform_fee_bps")
	}
	if cfg.DefaultSlippageBps <= 0 || cfg.DefaultSlippageBps > maxBps {
		return errors.New("invalid default_slippage_bps")
	}
	if cfg.PriorityMaxLamports == 0 {
		return errors.New("invalid priority_max_lamports")
	}
	if cfg.QuoteDebounce < 0 {
		return errors.New("invalid quote_debounce")
	}
	if cfg.RequestTimeout <= 0 || cfg.RPCTimeout <= 0 {
		return errors.New("invalid timeout")
	}
	if cfg.RatePerMinute <= 0 {
		return errors.New("invalid rate_per_minute")
	}
	if cfg.CacheTTL <= 0 {
		return errors.New("invalid cache_ttl")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.ReconcileInterval < 0 {
		return errors.New("invalid reconcile_interval")
	}
	if cfg.SolFallbackPrice <= 0 {
		return errors.New("invalid sol_fallback_price")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// MEMESWAP_RPC_LIST приходит строкой через запятую, пробелы вокруг URL убираем.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	envRPCList := v.GetString("RPC_LIST")
	if envRPCList == "" {
		return
	}
	var cleanRPCs []string
	for _, rpc := range strings.Split(envRPCList, ",") {
		clean := strings.TrimSpace(rpc)
		if clean != "" {
			cleanRPCs = append(cleanRPCs, clean)
		}
	}
	if len(cleanRPCs) > 0 {
		cfg.RPCList = cleanRPCs
	}
}
