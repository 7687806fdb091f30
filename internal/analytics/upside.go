// internal/analytics/upside.go
package analytics

// PercentToATH returns how far price must rise to reach athPrice, in percent.
// Negative when price is already above the recorded ATH.
func PercentToATH(price, athPrice float64) float64 {
	if price <= 0 || athPrice <= 0 {
		return 0
	}
	return (athPrice - price) / price * 100
}

// Upside is the projected value of a position if the token returns to its ATH.
type Upside struct {
	CurrentValue   float64 `json:"currentValue"`
	ATHValue       float64 `json:"athValue"`
	Profit         float64 `json:"profit"`
	PercentageGain float64 `json:"percentageGain"`
}

// UpsideToATH projects investmentUSD bought at currentPrice onto athPrice.
func UpsideToATH(investmentUSD, currentPrice, athPrice float64) Upside {
	if currentPrice <= 0 {
		return Upside{
			CurrentValue: investmentUSD,
			ATHValue:     investmentUSD,
		}
	}

	tokens := investmentUSD / currentPrice
	athValue := tokens * athPrice
	profit := athValue - investmentUSD

	var gain float64
	if investmentUSD != 0 {
		gain = profit / investmentUSD * 100
	}

	return Upside{
		CurrentValue:   investmentUSD,
		ATHValue:       athValue,
		Profit:         profit,
		PercentageGain: gain,
	}
}
