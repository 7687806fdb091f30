// internal/marketdata/coingecko.go
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	SolanaCoinID        = "solana"

	coinGeckoPerMinute    = 30
	coinGeckoProPerMinute = 500
	coinIDCacheTTL        = 10 * time.Minute
)

// CoinGecko reads reference-asset USD prices and listed-coin price history.
type CoinGecko struct {
	baseURL string
	apiKey  string
	client  *http.Client
	http    *retryGetter
	ids     *idCache
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration, m *metrics.Collector, logger *zap.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.Named("coingecko")
	client := &http.Client{Timeout: timeout}

	perMinute := coinGeckoPerMinute
	header := http.Header{}
	if apiKey != "" {
		perMinute = coinGeckoProPerMinute
		header.Set("x-cg-pro-api-key", apiKey)
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		http: &retryGetter{
			client:  client,
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 5),
			header:  header,
			logger:  logger,
		},
		ids:     newIDCache(coinIDCacheTTL),
		metrics: m,
		logger:  logger,
	}
}

// SimplePrice returns the USD price of coinID.
func (c *CoinGecko) SimplePrice(ctx context.Context, coinID string) (price float64, err error) {
	defer func() { c.metrics.RecordUpstream("coingecko", "simple_price", err) }()

	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var out map[string]struct {
		USD Number `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	p, ok := out[coinID]
	if !ok || p.USD <= 0 {
		return 0, fmt.Errorf("no usd price for %s", coinID)
	}
	return float64(p.USD), nil
}

// SolPrice returns the SOL price or fallback when the provider is unavailable.
func (c *CoinGecko) SolPrice(ctx context.Context, fallback float64) float64 {
	price, err := c.SimplePrice(ctx, SolanaCoinID)
	if err != nil {
		c.logger.Warn("SOL price unavailable, using fallback",
			zap.Float64("fallback", fallback),
			zap.Error(err))
		return fallback
	}
	return price
}

// CoinID resolves the CoinGecko id of a contract address. It returns "" when
// CoinGecko does not list the token.
func (c *CoinGecko) CoinID(ctx context.Context, t domain.TrackedToken) (id string, err error) {
	platform := string(chainOrDefault(t.Chain))
	key := platform + ":" + t.Address
	if id, ok := c.ids.get(key); ok {
		return id, nil
	}

	defer func() { c.metrics.RecordUpstream("coingecko", "contract", err) }()
	body, err := c.http.get(ctx, fmt.Sprintf("%s/coins/%s/contract/%s", c.baseURL, platform, url.PathEscape(t.Address)))
	var serr *StatusError
	if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve coin id for %s: %w", t.Address, err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode contract: %w", err)
	}
	if resp.ID != "" {
		c.ids.set(key, resp.ID)
	}
	return resp.ID, nil
}

// OHLC returns ascending candles. CoinGecko picks the bar width from the
// window: 30m up to 2 days, 4h up to 30 days, daily beyond.
func (c *CoinGecko) OHLC(ctx context.Context, t domain.TrackedToken, days Days) ([]Candle, error) {
	id, err := c.CoinID(ctx, t)
	if err != nil || id == "" {
		return nil, err
	}

	body, err := c.http.get(ctx, fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%s", c.baseURL, url.PathEscape(id), days))
	c.metrics.RecordUpstream("coingecko", "ohlc", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get ohlc for %s: %w", id, err)
	}

	var rows [][]Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ohlc: %w", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		// [ms, open, high, low, close]
		if len(row) < 5 {
			continue
		}
		out = append(out, Candle{
			Time:  int64(row[0]) / 1000,
			Open:  float64(row[1]),
			High:  float64(row[2]),
			Low:   float64(row[3]),
			Close: float64(row[4]),
		})
	}
	sortCandles(out)
	return out, nil
}

// MarketChart returns the USD price line over days.
func (c *CoinGecko) MarketChart(ctx context.Context, t domain.TrackedToken, days Days) ([]Point, error) {
	id, err := c.CoinID(ctx, t)
	if err != nil || id == "" {
		return nil, err
	}

	body, err := c.http.get(ctx, fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%s", c.baseURL, url.PathEscape(id), days))
	c.metrics.RecordUpstream("coingecko", "market_chart", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get market chart for %s: %w", id, err)
	}

	var resp struct {
		Prices [][]Number `json:"prices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode market chart: %w", err)
	}
	out := make([]Point, 0, len(resp.Prices))
	for _, row := range resp.Prices {
		if len(row) < 2 {
			continue
		}
		out = append(out, Point{Time: int64(row[0]) / 1000, Value: float64(row[1])})
	}
	return out, nil
}
