// Package severity classifies clusters and individual markers into
// coarse urgency tiers.
//
// Cluster severity is a sampling heuristic, not an exact aggregate: at
// most SampleSize member reports are inspected and the observed counts
// are scaled by point_count/sample_size. Downstream consumers must not
// treat the result as an exact count.
package severity

import (
	"math"

	"floodmap/pkg/model"
)

// Thresholds are the trust-score cutoffs for the urgency flags.
type Thresholds struct {
	UrgentTrustMin float64 // ALERT/SOS at or above this trust are urgent
	RainTrustMin   float64 // RAIN at or above this trust is significant
}

// DefaultThresholds returns the production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{UrgentTrustMin: 0.7, RainTrustMin: 0.6}
}

// ComputeFlags derives the urgency flags for a report. Pure: the same
// report always yields the same flags.
func ComputeFlags(r *model.Report, th Thresholds) model.UrgencyFlags {
	return model.UrgencyFlags{
		IsUrgent:           r.Category.IsAlertOrSOS() && r.TrustScore >= th.UrgentTrustMin,
		IsAlertOrSOS:       r.Category.IsAlertOrSOS(),
		HasSignificantRain: r.Category == model.CategoryRain && r.TrustScore >= th.RainTrustMin,
	}
}

// MarkerSeverity classifies an individual, non-clustered report.
// O(1), no index access.
func MarkerSeverity(r *model.Report, th Thresholds) model.Severity {
	switch {
	case r.Category.IsAlertOrSOS() && r.TrustScore >= th.UrgentTrustMin:
		return model.SeverityHigh
	case r.TrustScore >= 0.4 || r.Category == model.CategoryRoad:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// LeafSource provides cluster membership, typically an index build.
type LeafSource interface {
	Leaves(clusterID, limit int) ([]model.Report, error)
}

// Aggregator computes cluster severity tiers against one index build.
// It samples at most SampleSize leaves per cluster, so per-cluster cost
// is bounded regardless of membership size.
type Aggregator struct {
	src        LeafSource
	flags      map[string]model.UrgencyFlags
	sampleSize int

	// OnFallback, if set, is called whenever leaf retrieval fails and
	// the count-only heuristic is used instead.
	OnFallback func()
}

// NewAggregator creates an aggregator over the given leaf source and
// the precomputed per-report flags, keyed by report id.
func NewAggregator(src LeafSource, flags map[string]model.UrgencyFlags, sampleSize int) *Aggregator {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	return &Aggregator{src: src, flags: flags, sampleSize: sampleSize}
}

// ClusterSeverity classifies a cluster. Leaf-retrieval failures (e.g. a
// stale cluster id after a rebuild) degrade to a count-only heuristic
// and are never surfaced as errors.
func (a *Aggregator) ClusterSeverity(clusterID, pointCount int) model.Severity {
	sampleSize := a.sampleSize
	if pointCount < sampleSize {
		sampleSize = pointCount
	}

	leaves, err := a.src.Leaves(clusterID, sampleSize)
	if err != nil || len(leaves) == 0 {
		if a.OnFallback != nil {
			a.OnFallback()
		}
		return countOnlySeverity(pointCount)
	}

	var urgent, alertSOS int
	hasRain := false
	for i := range leaves {
		f := a.flags[leaves[i].ID]
		if f.IsUrgent {
			urgent++
		}
		if f.IsAlertOrSOS {
			alertSOS++
		}
		if f.HasSignificantRain {
			hasRain = true
		}
	}

	scale := float64(pointCount) / float64(len(leaves))
	scaledUrgent := int(math.Round(float64(urgent) * scale))
	scaledAlertSOS := int(math.Round(float64(alertSOS) * scale))

	switch {
	case scaledUrgent >= 3 || scaledAlertSOS >= 5:
		return model.SeverityCritical
	case scaledUrgent >= 1 || scaledAlertSOS >= 2:
		return model.SeverityHigh
	case hasRain || pointCount >= 10:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// countOnlySeverity is the degraded classification used when cluster
// membership cannot be retrieved.
func countOnlySeverity(pointCount int) model.Severity {
	switch {
	case pointCount >= 10:
		return model.SeverityHigh
	case pointCount >= 5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
