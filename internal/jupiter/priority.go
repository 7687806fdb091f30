// internal/jupiter/priority.go
package jupiter

import "fmt"

// PriorityLevel is the aggregator's priority-fee tier.
type PriorityLevel string

const (
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityVeryHigh PriorityLevel = "veryHigh"
)

// DefaultMaxLamports caps the priority fee a single swap may bid.
const DefaultMaxLamports = 1_000_000

// PriorityFee ограничивает приоритетную комиссию: фиксированный уровень
// и потолок в лампортах.
type PriorityFee struct {
	Level       PriorityLevel
	MaxLamports uint64
}

// DefaultPriorityFee is the high tier capped at DefaultMaxLamports.
func DefaultPriorityFee() PriorityFee {
	return PriorityFee{Level: PriorityHigh, MaxLamports: DefaultMaxLamports}
}

// ParsePriorityLevel accepts the aggregator's names.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	switch l := PriorityLevel(s); l {
	case PriorityMedium, PriorityHigh, PriorityVeryHigh:
		return l, nil
	}
	return "", fmt.Errorf("unknown priority level: %s", s)
}

func (p PriorityFee) Validate() error {
	if _, err := ParsePriorityLevel(string(p.Level)); err != nil {
		return err
	}
	if p.MaxLamports == 0 {
		return fmt.Errorf("priority fee cap must be positive")
	}
	return nil
}

type priorityLevelWithMaxLamports struct {
	MaxLamports   uint64        `json:"maxLamports"`
	PriorityLevel PriorityLevel `json:"priorityLevel"`
}

type prioritizationFee struct {
	PriorityLevelWithMaxLamports priorityLevelWithMaxLamports `json:"priorityLevelWithMaxLamports"`
}

func (p PriorityFee) wire() prioritizationFee {
	return prioritizationFee{
		PriorityLevelWithMaxLamports: priorityLevelWithMaxLamports{
			MaxLamports:   p.MaxLamports,
			PriorityLevel: p.Level,
		},
	}
}
