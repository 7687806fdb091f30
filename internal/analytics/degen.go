// internal/analytics/degen.go
package analytics

import "math"

// RiskLevel буквенная оценка риска по сумме баллов.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// TokenMetrics is the market input of the degen score.
type TokenMetrics struct {
	Liquidity    float64
	Volume24h    float64
	Change24h    float64
	PercentToATH float64
	MarketCap    float64
}

// DegenScore is a 0..100 composite of five sub-scores, each capped at 20.
type DegenScore struct {
	Liquidity   int       `json:"liquidity"`
	Volume      int       `json:"volume"`
	Volatility  int       `json:"volatility"`
	ATHDistance int       `json:"athDistance"`
	MarketCap   int       `json:"marketCap"`
	Total       int       `json:"total"`
	RiskLevel   RiskLevel `json:"riskLevel"`
}

type band struct {
	limit float64
	score int
}

// Bands are checked in order; the fallback applies when none matches.
var (
	liquidityBands = []band{{1_000_000, 20}, {500_000, 16}, {100_000, 12}, {50_000, 8}, {10_000, 4}}
	volumeBands    = []band{{10_000_000, 20}, {5_000_000, 16}, {1_000_000, 12}, {500_000, 8}, {100_000, 4}}
	mcapBands      = []band{{100_000_000, 20}, {50_000_000, 16}, {10_000_000, 12}, {5_000_000, 8}, {1_000_000, 4}}

	volatilityBands  = []band{{5, 20}, {10, 16}, {20, 12}, {30, 8}, {50, 4}}
	athDistanceBands = []band{{50, 18}, {100, 16}, {200, 14}, {500, 10}, {1000, 6}}
)

const (
	bandFallback        = 2
	athDistanceFallback = 4
)

// atLeast scores "bigger is better" metrics.
func atLeast(v float64, bands []band, fallback int) int {
	for _, b := range bands {
		if v >= b.limit {
			return b.score
		}
	}
	return fallback
}

// atMost scores "smaller is better" metrics.
func atMost(v float64, bands []band, fallback int) int {
	if math.IsNaN(v) {
		return fallback
	}
	for _, b := range bands {
		if v <= b.limit {
			return b.score
		}
	}
	return fallback
}

// Score computes the degen score for m.
func Score(m TokenMetrics) DegenScore {
	s := DegenScore{
		Liquidity:   atLeast(m.Liquidity, liquidityBands, bandFallback),
		Volume:      atLeast(m.Volume24h, volumeBands, bandFallback),
		Volatility:  atMost(math.Abs(m.Change24h), volatilityBands, bandFallback),
		ATHDistance: atMost(m.PercentToATH, athDistanceBands, athDistanceFallback),
		MarketCap:   atLeast(m.MarketCap, mcapBands, bandFallback),
	}
	s.Total = s.Liquidity + s.Volume + s.Volatility + s.ATHDistance + s.MarketCap
	s.RiskLevel = RiskFor(s.Total)
	return s
}

// RiskFor maps a total score to a risk level. Every integer has exactly one level.
func RiskFor(total int) RiskLevel {
	switch {
	case total >= 70:
		return RiskLow
	case total >= 50:
		return RiskMedium
	case total >= 30:
		return RiskHigh
	default:
		return RiskExtreme
	}
}
