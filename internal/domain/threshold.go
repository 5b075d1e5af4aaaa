package domain

import "fmt"

// ThresholdPolicy decides whether an occupancy percentage is flagged for
// transfer action. Policies hold no state beyond their thresholds.
type ThresholdPolicy interface {
	// Flags reports whether the occupancy percentage triggers the policy.
	Flags(occupancyPercent float64) bool
	Name() string
}

// PercentageFloor flags trips whose occupancy is below Min, i.e. the
// under-occupied (critical) trips that are candidates to be emptied.
type PercentageFloor struct {
	Min float64
}

// Flags returns true when the occupancy is strictly below the floor.
func (p PercentageFloor) Flags(occupancyPercent float64) bool {
	return occupancyPercent < p.Min
}

// Name returns a human-readable description.
func (p PercentageFloor) Name() string {
	return fmt.Sprintf("below %.2f%%", p.Min)
}

// Range flags occupancies within [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// Flags returns true when Min <= occupancy <= Max.
func (r Range) Flags(occupancyPercent float64) bool {
	return r.Min <= occupancyPercent && occupancyPercent <= r.Max
}

// Name returns a human-readable description.
func (r Range) Name() string {
	return fmt.Sprintf("between %.2f%% and %.2f%%", r.Min, r.Max)
}

// Ensure concrete types implement ThresholdPolicy.
var (
	_ ThresholdPolicy = PercentageFloor{}
	_ ThresholdPolicy = Range{}
)
