// internal/marketdata/dexscreener.go
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	requestsPerMinute     = 300
	// BatchLimit is the provider's maximum addresses per batch call.
	BatchLimit = 30
)

// DexScreener is a rate-limited client for the DexScreener public API.
type DexScreener struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewDexScreener создает клиент DexScreener
func NewDexScreener(baseURL string, timeout time.Duration, m *metrics.Collector, logger *zap.Logger) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), 5),
		metrics: m,
		logger:  logger.Named("dexscreener"),
	}
}

// PairByAddress fetches a single pair. Returns nil without error when the
// provider does not know the pair.
func (d *DexScreener) PairByAddress(ctx context.Context, chain, pairAddress string) (*Pair, error) {
	url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.baseURL, chain, pairAddress)

	var resp Response
	if err := d.get(ctx, "pair", url, &resp); err != nil {
		return nil, fmt.Errorf("failed to get pair %s: %w", pairAddress, err)
	}
	if resp.Pair != nil {
		return resp.Pair, nil
	}
	if len(resp.Pairs) > 0 {
		return &resp.Pairs[0], nil
	}
	return nil, nil
}

// PairsByToken returns every pair the provider lists for tokenAddress.
func (d *DexScreener) PairsByToken(ctx context.Context, tokenAddress string) ([]Pair, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, tokenAddress)

	var resp Response
	if err := d.get(ctx, "token", url, &resp); err != nil {
		return nil, fmt.Errorf("failed to get token pairs %s: %w", tokenAddress, err)
	}
	return resp.Pairs, nil
}

// PairsBatch fetches up to BatchLimit pairs on one chain in a single call.
func (d *DexScreener) PairsBatch(ctx context.Context, chain string, pairAddresses []string) ([]Pair, error) {
	if len(pairAddresses) > BatchLimit {
		return nil, fmt.Errorf("batch of %d pairs exceeds limit %d", len(pairAddresses), BatchLimit)
	}
	url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.baseURL, chain, strings.Join(pairAddresses, ","))

	var resp Response
	if err := d.get(ctx, "pairs_batch", url, &resp); err != nil {
		return nil, fmt.Errorf("failed to get pairs batch: %w", err)
	}
	if len(resp.Pairs) == 0 && resp.Pair != nil {
		return []Pair{*resp.Pair}, nil
	}
	return resp.Pairs, nil
}

// TokensBatch fetches pairs for up to BatchLimit tokens on one chain.
func (d *DexScreener) TokensBatch(ctx context.Context, chain string, tokenAddresses []string) ([]Pair, error) {
	if len(tokenAddresses) > BatchLimit {
		return nil, fmt.Errorf("batch of %d tokens exceeds limit %d", len(tokenAddresses), BatchLimit)
	}
	url := fmt.Sprintf("%s/tokens/v1/%s/%s", d.baseURL, chain, strings.Join(tokenAddresses, ","))

	var pairs []Pair
	if err := d.get(ctx, "tokens_batch", url, &pairs); err != nil {
		return nil, fmt.Errorf("failed to get tokens batch: %w", err)
	}
	return pairs, nil
}

// get выполняет HTTP запрос с учетом rate limit
func (d *DexScreener) get(ctx context.Context, endpoint, url string, out any) (err error) {
	defer func() { d.metrics.RecordUpstream("dexscreener", endpoint, err) }()

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
