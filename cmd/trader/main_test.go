package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

func parseFlags(t *testing.T, args ...string) options {
	t.Helper()
	var opts options
	fs := flag.NewFlagSet("trader", flag.ContinueOnError)
	bindFlags(fs, &opts)
	require.NoError(t, fs.Parse(args))
	return opts
}

func TestPayMintDefaultsToNativeMint(t *testing.T) {
	opts := parseFlags(t, "-wallet", "main", "-token", domain.USDCMint, "-amount", "0.5")

	intent, err := parseIntent(opts)
	require.NoError(t, err)
	assert.Equal(t, domain.NativeMint, intent.PayMint)
	assert.Equal(t, domain.DirectionBuy, intent.Direction)
}

func TestParseIntentRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing wallet", []string{"-token", "x", "-amount", "1"}},
		{"zero amount", []string{"-wallet", "w", "-token", "x", "-amount", "0"}},
		{"bad side", []string{"-wallet", "w", "-token", "x", "-amount", "1", "-side", "hold"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseIntent(parseFlags(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestShortMint(t *testing.T) {
	assert.Equal(t, "So11..1112", shortMint(domain.NativeMint))
	assert.Equal(t, "abc", shortMint("abc"))
}
