// internal/marketdata/history.go
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Candle is one OHLC bar; Time is unix seconds at the bar open.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// Point is one line-chart sample.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

type ChartKind string

const (
	ChartCandles ChartKind = "candles"
	ChartLine    ChartKind = "line"
)

// Days is a history window as the chart offers it: a number of days or "max".
type Days string

var validDays = map[Days]bool{
	"1": true, "7": true, "14": true, "30": true, "90": true, "180": true, "365": true, "max": true,
}

// ParseChart validates the chart kind and window; empty values take
// candles and 7 days.
func ParseChart(kind, days string) (ChartKind, Days, error) {
	k := ChartKind(kind)
	if k == "" {
		k = ChartCandles
	}
	if k != ChartCandles && k != ChartLine {
		return "", "", domain.Invalid("chart", "must be candles or line")
	}
	d := Days(days)
	if d == "" {
		d = "7"
	}
	if !validDays[d] {
		return "", "", domain.Invalid("days", "must be one of 1, 7, 14, 30, 90, 180, 365, max")
	}
	return k, d, nil
}

// PriceChange сравнивает первую и последнюю точку окна.
type PriceChange struct {
	Current    float64 `json:"current"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// PriceHistory is a chart series. Source is empty when no provider had data.
type PriceHistory struct {
	Source  string       `json:"source"`
	Kind    ChartKind    `json:"kind"`
	Days    Days         `json:"days"`
	Candles []Candle     `json:"candles"`
	Points  []Point      `json:"points"`
	Change  *PriceChange `json:"change,omitempty"`
}

func (h *PriceHistory) empty() bool {
	return len(h.Candles) == 0 && len(h.Points) == 0
}

func (h *PriceHistory) summarize() {
	var first, last float64
	switch {
	case len(h.Candles) >= 2:
		first, last = h.Candles[0].Open, h.Candles[len(h.Candles)-1].Close
	case len(h.Points) >= 2:
		first, last = h.Points[0].Value, h.Points[len(h.Points)-1].Value
	default:
		return
	}
	if first <= 0 {
		return
	}
	h.Change = &PriceChange{
		Current:    last,
		Value:      last - first,
		Percentage: (last - first) / first * 100,
	}
}

func sortCandles(c []Candle) {
	sort.Slice(c, func(i, j int) bool { return c[i].Time < c[j].Time })
}

// CoinHistory is the aggregator-listed history provider.
type CoinHistory interface {
	OHLC(ctx context.Context, t domain.TrackedToken, days Days) ([]Candle, error)
	MarketChart(ctx context.Context, t domain.TrackedToken, days Days) ([]Point, error)
}

// PoolHistory is the on-chain pool history provider.
type PoolHistory interface {
	OHLCV(ctx context.Context, t domain.TrackedToken, days Days) ([]Candle, error)
}

// History serves chart series: CoinGecko first, then the token's most liquid
// GeckoTerminal pool for tokens the aggregator does not list.
type History struct {
	coins  CoinHistory
	pools  PoolHistory
	logger *zap.Logger
}

func NewHistory(coins CoinHistory, pools PoolHistory, logger *zap.Logger) *History {
	return &History{coins: coins, pools: pools, logger: logger.Named("history")}
}

// Get never fails: provider errors are logged and an empty series is
// returned, so the caller can fall back to an external chart.
func (h *History) Get(ctx context.Context, t domain.TrackedToken, kind ChartKind, days Days) *PriceHistory {
	t.Chain = chainOrDefault(t.Chain)
	out := &PriceHistory{Kind: kind, Days: days, Candles: []Candle{}, Points: []Point{}}

	if h.coins != nil {
		var err error
		if kind == ChartLine {
			var pts []Point
			pts, err = h.coins.MarketChart(ctx, t, days)
			if len(pts) > 0 {
				out.Points = pts
			}
		} else {
			var cs []Candle
			cs, err = h.coins.OHLC(ctx, t, days)
			if len(cs) > 0 {
				out.Candles = cs
			}
		}
		if err != nil {
			h.logger.Warn("coingecko history unavailable",
				zap.String("token", t.Address), zap.String("chain", string(t.Chain)), zap.Error(err))
		}
		if !out.empty() {
			out.Source = "coingecko"
		}
	}

	if out.empty() && h.pools != nil {
		cs, err := h.pools.OHLCV(ctx, t, days)
		if err != nil {
			h.logger.Warn("geckoterminal history unavailable",
				zap.String("token", t.Address), zap.String("chain", string(t.Chain)), zap.Error(err))
		}
		if len(cs) > 0 {
			out.Source = "geckoterminal"
			if kind == ChartLine {
				out.Points = make([]Point, len(cs))
				for i, c := range cs {
					out.Points[i] = Point{Time: c.Time, Value: c.Close}
				}
			} else {
				out.Candles = cs
			}
		}
	}

	out.summarize()
	return out
}

// idCache запоминает разрешённые идентификаторы (coin id, pool) на ttl.
type idCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idEntry
}

type idEntry struct {
	id      string
	expires time.Time
}

func newIDCache(ttl time.Duration) *idCache {
	return &idCache{ttl: ttl, entries: make(map[string]idEntry)}
}

func (c *idCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.id, true
}

func (c *idCache) set(key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = idEntry{id: id, expires: time.Now().Add(c.ttl)}
}
