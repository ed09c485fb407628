package model

import (
	"time"
)

// Category identifies the kind of incident a report describes.
type Category string

const (
	CategoryAlert Category = "ALERT"
	CategorySOS   Category = "SOS"
	CategoryRoad  Category = "ROAD"
	CategoryNeeds Category = "NEEDS"
	CategoryRain  Category = "RAIN"
	CategoryOther Category = "OTHER"
)

// Severity is a coarse urgency tier used for visual prioritization.
// Clusters use the 4-tier scale (critical..low); individual markers
// use the 3-tier subset (high..low).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Report is a single geolocated incident report. Reports are owned by
// the caller and never mutated by the engine.
type Report struct {
	ID         string    `json:"id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	HasCoords  bool      `json:"has_coords"`
	Category   Category  `json:"category"`
	TrustScore float64   `json:"trust_score"` // [0,1]
	CreatedAt  time.Time `json:"created_at"`
}

// UrgencyFlags are precomputed per report when the report set changes,
// so severity aggregation never re-evaluates category/trust logic.
// They are a pure function of the report.
type UrgencyFlags struct {
	IsUrgent           bool
	IsAlertOrSOS       bool
	HasSignificantRain bool
}

// ClusterFeature is an aggregated group of nearby reports, valid only
// for the index build it was computed against.
type ClusterFeature struct {
	ClusterID  int      `json:"cluster_id"`
	Lon        float64  `json:"lon"`
	Lat        float64  `json:"lat"`
	PointCount int      `json:"point_count"`
	Severity   Severity `json:"severity"`
}

// PointFeature is a single ungrouped report with its marker severity.
type PointFeature struct {
	Report   Report   `json:"report"`
	Severity Severity `json:"severity"`
}

// Viewport is a camera state: a center coordinate plus zoom level.
type Viewport struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom float64 `json:"zoom"`
}

// RadiusFilter restricts the effective report set to a circle.
type RadiusFilter struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

// ViewportState is the navigation state owned by nav.Controller.
// PreviousViewport is a single slot, not a stack: exactly one level of
// restore is supported.
type ViewportState struct {
	Viewport         Viewport      `json:"viewport"`
	PreviousViewport *Viewport     `json:"previous_viewport,omitempty"`
	SelectedPointID  string        `json:"selected_point_id,omitempty"`
	RadiusFilter     *RadiusFilter `json:"radius_filter,omitempty"`
}

// Age returns how old the report is at the given instant.
func (r *Report) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// IsAlertOrSOS reports whether the category is one of the two
// emergency categories.
func (c Category) IsAlertOrSOS() bool {
	return c == CategoryAlert || c == CategorySOS
}
