// internal/marketdata/geckoterminal.go
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultGeckoTerminalURL = "https://api.geckoterminal.com/api/v2"
	// публичный лимит GeckoTerminal
	geckoTerminalPerMinute = 30
	poolCacheTTL           = 5 * time.Minute
)

// GeckoTerminal reads pool OHLCV from the GeckoTerminal public API.
type GeckoTerminal struct {
	baseURL string
	http    *retryGetter
	pools   *idCache
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewGeckoTerminal(baseURL string, timeout time.Duration, m *metrics.Collector, logger *zap.Logger) *GeckoTerminal {
	if baseURL == "" {
		baseURL = DefaultGeckoTerminalURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.Named("geckoterminal")
	return &GeckoTerminal{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &retryGetter{
			client:  &http.Client{Timeout: timeout},
			limiter: rate.NewLimiter(rate.Every(time.Minute/geckoTerminalPerMinute), 5),
			logger:  logger,
		},
		pools:   newIDCache(poolCacheTTL),
		metrics: m,
		logger:  logger,
	}
}

func geckoNetwork(c domain.Chain) string {
	if c == domain.ChainEthereum {
		return "eth"
	}
	return string(chainOrDefault(c))
}

// frame maps a chart window onto an OHLCV timeframe, aggregate and bar count.
func frame(days Days) (timeframe string, aggregate, limit int) {
	switch days {
	case "1":
		return "minute", 15, 96
	case "7":
		return "hour", 1, 168
	case "14":
		return "hour", 4, 84
	case "30":
		return "hour", 4, 180
	case "max":
		return "day", 1, 1000
	}
	n, err := strconv.Atoi(string(days))
	if err != nil || n <= 0 {
		return "day", 1, 30
	}
	return "day", 1, n
}

// TopPool returns the most liquid pool for t, or "" when GeckoTerminal lists
// none. A configured pair address is used as is.
func (g *GeckoTerminal) TopPool(ctx context.Context, t domain.TrackedToken) (pool string, err error) {
	if t.PairAddress != "" {
		return t.PairAddress, nil
	}
	network := geckoNetwork(t.Chain)
	key := network + ":" + t.Address
	if id, ok := g.pools.get(key); ok {
		return id, nil
	}

	defer func() { g.metrics.RecordUpstream("geckoterminal", "pools", err) }()
	body, err := g.http.get(ctx, fmt.Sprintf("%s/networks/%s/tokens/%s/pools?page=1", g.baseURL, network, url.PathEscape(t.Address)))
	if err != nil {
		return "", fmt.Errorf("failed to get pools for %s: %w", t.Address, err)
	}
	var resp struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Address string `json:"address"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode pools: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	top := resp.Data[0]
	pool = top.Attributes.Address
	if pool == "" {
		// id имеет вид <network>_<pool>
		_, pool, _ = strings.Cut(top.ID, "_")
	}
	if pool != "" {
		g.pools.set(key, pool)
	}
	return pool, nil
}

// OHLCV returns ascending candles of t's top pool over days.
func (g *GeckoTerminal) OHLCV(ctx context.Context, t domain.TrackedToken, days Days) ([]Candle, error) {
	pool, err := g.TopPool(ctx, t)
	if err != nil || pool == "" {
		return nil, err
	}

	timeframe, aggregate, limit := frame(days)
	q := url.Values{}
	q.Set("aggregate", strconv.Itoa(aggregate))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("currency", "usd")
	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/%s?%s", g.baseURL, geckoNetwork(t.Chain), url.PathEscape(pool), timeframe, q.Encode())

	body, err := g.http.get(ctx, endpoint)
	g.metrics.RecordUpstream("geckoterminal", "ohlcv", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get ohlcv for pool %s: %w", pool, err)
	}

	var resp struct {
		Data struct {
			Attributes struct {
				List [][]Number `json:"ohlcv_list"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode ohlcv: %w", err)
	}

	out := make([]Candle, 0, len(resp.Data.Attributes.List))
	for _, row := range resp.Data.Attributes.List {
		// [timestamp, open, high, low, close, volume]
		if len(row) < 5 {
			continue
		}
		c := Candle{
			Time:  int64(row[0]),
			Open:  float64(row[1]),
			High:  float64(row[2]),
			Low:   float64(row[3]),
			Close: float64(row[4]),
		}
		if len(row) > 5 {
			c.Volume = float64(row[5])
		}
		out = append(out, c)
	}
	sortCandles(out)
	return out, nil
}
