// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigYAML = `
rpc_list:
  - https://api.mainnet-beta.solana.com
  - https://rpc.ankr.com/solana
platform_fee_bps: 50
default_slippage_bps: 100
quote_debounce: 250ms
reconcile_interval: 30s
postgres_url: postgres://u:p@localhost:5432/memeswap
fee_accounts:
  - mint: So11111111111111111111111111111111111111112
    account: HowcznAWAbUT5jzKxu4HMWY4sZyhavgwMk3kurHot4Li
log:
  file: test.log
  development: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPlatformFeeBps, cfg.PlatformFeeBps)
	assert.Equal(t, DefaultSlippageBps, cfg.DefaultSlippageBps)
	assert.Equal(t, DefaultQuoteDebounce, cfg.QuoteDebounce)
	assert.Equal(t, DefaultAdminWallet, cfg.AdminWallet)
	assert.Equal(t, uint(DefaultBroadcastRetries), cfg.BroadcastRetries)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.Equal(t, 600, cfg.RatePerMinute)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, float64(DefaultSolFallbackPrice), cfg.SolFallbackPrice)
	assert.Equal(t, "https://api.geckoterminal.com/api/v2", cfg.GeckoTermURL)

	fees := cfg.FeeAccountMap()
	assert.Equal(t, wsolFeeAccount, fees[nativeMint])
	assert.Equal(t, usdcFeeAccount, fees[usdcMint])
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.RPCList, 2)
	assert.Equal(t, 50, cfg.PlatformFeeBps)
	assert.Equal(t, 250*time.Millisecond, cfg.QuoteDebounce)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Len(t, cfg.FeeAccounts, 1)
	assert.Equal(t, "test.log", cfg.Log.File)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 100, cfg.Log.MaxSize)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MEMESWAP_RPC_LIST", "https://a.example.com , https://b.example.com")
	t.Setenv("MEMESWAP_PLATFORM_FEE_BPS", "25")
	t.Setenv("MEMESWAP_LOG_FILE", "env.log")

	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPCList)
	assert.Equal(t, 25, cfg.PlatformFeeBps)
	assert.Equal(t, "env.log", cfg.Log.File)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty rpc list", "rpc_list: []\n"},
		{"ws rpc", "rpc_list: [wss://api.mainnet-beta.solana.com]\n"},
		{"bad admin", "admin_wallet: nope\n"},
		{"fee too high", "platform_fee_bps: 20000\n"},
		{"zero slippage", "default_slippage_bps: 0\n"},
		{"bad priority", "priority_level: turbo\n"},
		{"bad fee account", "fee_accounts:\n  - mint: x\n    account: y\n"},
		{"negative reconcile", "reconcile_interval: -1s\n"},
		{"bad geckoterminal url", "geckoterminal_url: ftp://x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
