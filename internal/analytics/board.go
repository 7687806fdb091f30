// internal/analytics/board.go
package analytics

import (
	"fmt"
	"sort"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// TokenView is a tracked token joined with its latest market data.
type TokenView struct {
	domain.TrackedToken
	Market       domain.MarketSnapshot `json:"market"`
	HasMarket    bool                  `json:"hasMarket"`
	PercentToATH float64               `json:"percentToAth"`
	Degen        DegenScore            `json:"degenScore"`
}

// NewTokenView joins t with snap. A nil snap yields zeroed market data.
func NewTokenView(t domain.TrackedToken, snap *domain.MarketSnapshot) TokenView {
	v := TokenView{TrackedToken: t}
	if snap != nil {
		v.Market = *snap
		v.HasMarket = true
	}
	v.PercentToATH = PercentToATH(v.Market.Price, t.ATHPrice)
	v.Degen = Score(TokenMetrics{
		Liquidity:    v.Market.Liquidity,
		Volume24h:    v.Market.Volume24h,
		Change24h:    v.Market.Change24h,
		PercentToATH: v.PercentToATH,
		MarketCap:    v.Market.MarketCap,
	})
	return v
}

// Board kinds.
type BoardKind string

const (
	BoardGainers BoardKind = "gainers"
	BoardLosers  BoardKind = "losers"
	BoardVolume  BoardKind = "volume"
	BoardClosest BoardKind = "closest"
)

// closestMaxPercent drops tokens too far from ATH to be interesting.
const closestMaxPercent = 1000

// Leaderboard filters and orders views for kind. limit <= 0 means no limit.
func Leaderboard(views []TokenView, kind BoardKind, limit int) ([]TokenView, error) {
	var (
		keep func(TokenView) bool
		less func(a, b TokenView) bool
	)

	switch kind {
	case BoardGainers:
		keep = func(v TokenView) bool { return v.Market.Change24h > 0 }
		less = func(a, b TokenView) bool { return a.Market.Change24h > b.Market.Change24h }
	case BoardLosers:
		keep = func(v TokenView) bool { return v.Market.Change24h < 0 }
		less = func(a, b TokenView) bool { return a.Market.Change24h < b.Market.Change24h }
	case BoardVolume:
		keep = func(v TokenView) bool { return v.Market.Volume24h > 0 }
		less = func(a, b TokenView) bool { return a.Market.Volume24h > b.Market.Volume24h }
	case BoardClosest:
		keep = func(v TokenView) bool {
			return v.ATHPrice > 0 && v.PercentToATH > 0 && v.PercentToATH < closestMaxPercent
		}
		less = func(a, b TokenView) bool { return a.PercentToATH < b.PercentToATH }
	default:
		return nil, domain.Invalid("kind", fmt.Sprintf("unknown leaderboard %q", kind))
	}

	out := make([]TokenView, 0, len(views))
	for _, v := range views {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CategoryStats aggregates a category of the board.
type CategoryStats struct {
	Category       domain.Category `json:"category"`
	Tokens         int             `json:"tokens"`
	TotalMarketCap float64         `json:"totalMarketCap"`
	TotalVolume    float64         `json:"totalVolume"`
	AvgChange24h   float64         `json:"avgChange24h"`
}

// Categories groups views by category. Tokens without market data count
// towards Tokens but not towards the average change.
func Categories(views []TokenView) []CategoryStats {
	byCat := make(map[domain.Category]*CategoryStats)
	priced := make(map[domain.Category]int)
	var order []domain.Category

	for _, v := range views {
		st, ok := byCat[v.Category]
		if !ok {
			st = &CategoryStats{Category: v.Category}
			byCat[v.Category] = st
			order = append(order, v.Category)
		}
		st.Tokens++
		if !v.HasMarket {
			continue
		}
		st.TotalMarketCap += v.Market.MarketCap
		st.TotalVolume += v.Market.Volume24h
		st.AvgChange24h += v.Market.Change24h
		priced[v.Category]++
	}

	out := make([]CategoryStats, 0, len(order))
	for _, c := range order {
		st := byCat[c]
		if n := priced[c]; n > 0 {
			st.AvgChange24h /= float64(n)
		}
		out = append(out, *st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalMarketCap > out[j].TotalMarketCap })
	return out
}
