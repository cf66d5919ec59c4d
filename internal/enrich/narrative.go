package enrich

import (
	"context"
	"fmt"
)

// AreaStats is the aggregate input for a narrative summary.
type AreaStats struct {
	Parcels      int
	TotalAcreage float64
	TotalValue   float64
	AverageScore float64
}

// NarrativeProvider turns area aggregates into a human-readable summary.
// Implementations may call a language model; the service only depends on
// this interface.
type NarrativeProvider interface {
	Summarize(ctx context.Context, stats AreaStats) (string, error)
}

// StaticNarrative is the built-in template provider used when no model
// backend is configured.
type StaticNarrative struct{}

// Summarize renders a fixed-form summary. It never fails.
func (StaticNarrative) Summarize(_ context.Context, stats AreaStats) (string, error) {
	if stats.Parcels == 0 {
		return "No parcels intersect the selected area.", nil
	}
	return fmt.Sprintf(
		"The selected area contains %d parcels covering %.2f acres with a combined assessed value of $%.0f.",
		stats.Parcels, stats.TotalAcreage, stats.TotalValue,
	), nil
}
