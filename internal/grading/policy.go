package grading

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// GapDiscountPolicy maps a job's median AOI→FI gap (in days) to an
// attribution discount in [0,1]. A NaN gap means the gap is unknown.
type GapDiscountPolicy interface {
	Discount(medianGapDays float64) float64
}

// GapDiscountFunc adapts a plain function to a GapDiscountPolicy.
type GapDiscountFunc func(medianGapDays float64) float64

func (f GapDiscountFunc) Discount(medianGapDays float64) float64 {
	return f(medianGapDays)
}

// ScopePolicy decides how much of an AOI row counts toward attribution.
// 1.0 = fully in scope, 0.0 = out of scope (e.g. SMT vs TH mismatch).
// A failing policy is treated as fully in scope for that row.
type ScopePolicy interface {
	Weight(operator string, row Row) (float64, error)
}

// ScopeFunc adapts a plain function to a ScopePolicy.
type ScopeFunc func(operator string, row Row) (float64, error)

func (f ScopeFunc) Weight(operator string, row Row) (float64, error) {
	return f(operator, row)
}

// FullScope is the default scope policy: every row fully in scope.
type FullScope struct{}

func (FullScope) Weight(string, Row) (float64, error) { return 1.0, nil }

// Tier is one step of a gap-discount curve: gaps up to MaxGapDays
// (inclusive) receive Discount.
type Tier struct {
	MaxGapDays float64 `yaml:"max_gap_days"`
	Discount   float64 `yaml:"discount"`
}

// TierPolicy is a step-function gap-discount curve. Tiers must be ordered
// by ascending MaxGapDays; gaps beyond the last tier receive FloorDiscount
// and unknown gaps receive UnknownDiscount.
type TierPolicy struct {
	Tiers           []Tier  `yaml:"tiers"`
	FloorDiscount   float64 `yaml:"floor_discount"`
	UnknownDiscount float64 `yaml:"unknown_gap_discount"`
}

func (p TierPolicy) Discount(medianGapDays float64) float64 {
	if math.IsNaN(medianGapDays) {
		return p.UnknownDiscount
	}
	for _, t := range p.Tiers {
		if medianGapDays <= t.MaxGapDays {
			return t.Discount
		}
	}
	return p.FloorDiscount
}

// DefaultGapDiscount returns the built-in gap-discount curve. A longer
// gap between AOI and FI weakens the case that AOI, and not some
// intervening process step, missed the defect. The unknown-gap discount
// sits at the middle tier rather than the floor.
func DefaultGapDiscount() TierPolicy {
	return TierPolicy{
		Tiers: []Tier{
			{MaxGapDays: 1, Discount: 0.85},
			{MaxGapDays: 3, Discount: 0.70},
			{MaxGapDays: 7, Discount: 0.60},
		},
		FloorDiscount:   0.50,
		UnknownDiscount: 0.70,
	}
}

// LoadTierPolicy reads a gap-discount curve from a YAML policy file so
// the alpha curve can be tuned per plant without recompiling.
func LoadTierPolicy(path string) (TierPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TierPolicy{}, eris.Wrap(err, "policy: read file")
	}

	var p TierPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return TierPolicy{}, eris.Wrap(err, "policy: parse yaml")
	}

	if len(p.Tiers) == 0 {
		return TierPolicy{}, eris.New("policy: at least one tier required")
	}
	prev := math.Inf(-1)
	for _, t := range p.Tiers {
		if t.MaxGapDays <= prev {
			return TierPolicy{}, eris.Errorf("policy: tiers must be ordered by ascending max_gap_days (got %v after %v)", t.MaxGapDays, prev)
		}
		if t.Discount < 0 || t.Discount > 1 {
			return TierPolicy{}, eris.Errorf("policy: discount %v out of range [0,1]", t.Discount)
		}
		prev = t.MaxGapDays
	}
	if p.FloorDiscount < 0 || p.FloorDiscount > 1 {
		return TierPolicy{}, eris.Errorf("policy: floor_discount %v out of range [0,1]", p.FloorDiscount)
	}
	if p.UnknownDiscount < 0 || p.UnknownDiscount > 1 {
		return TierPolicy{}, eris.Errorf("policy: unknown_gap_discount %v out of range [0,1]", p.UnknownDiscount)
	}

	return p, nil
}
