// Package nav tracks the map viewport as an explicit state machine.
// Transitions mutate a single ViewportState value owned by the
// Controller; the rendering collaborator reads snapshots of it.
package nav

import (
	"strings"

	"floodmap/pkg/model"
)

// MaxZoom is the platform zoom ceiling. Expansion zooms are clamped to
// it so a degenerate single-point cluster cannot cause runaway zoom.
const MaxZoom = 20

// ProvinceAll resets the viewport to the national overview.
const ProvinceAll = "ALL"

// ExpansionSource resolves the zoom at which a cluster splits,
// typically the current index build.
type ExpansionSource interface {
	ExpansionZoom(clusterID int) (int, error)
}

// Controller owns the viewport state and applies interaction events.
// Single-owner: transitions are expected to run on the UI event thread.
type Controller struct {
	state     model.ViewportState
	home      model.Viewport
	provinces map[string]model.Viewport
}

// New creates a controller at the given national-overview viewport with
// the given province presets (names matched case-insensitively).
func New(home model.Viewport, provinces map[string]model.Viewport) *Controller {
	c := &Controller{
		home:      home,
		provinces: make(map[string]model.Viewport, len(provinces)),
	}
	for name, vp := range provinces {
		c.provinces[strings.ToUpper(name)] = vp
	}
	c.state.Viewport = home
	return c
}

// State returns a snapshot of the current viewport state.
func (c *Controller) State() model.ViewportState {
	s := c.state
	if c.state.PreviousViewport != nil {
		prev := *c.state.PreviousViewport
		s.PreviousViewport = &prev
	}
	if c.state.RadiusFilter != nil {
		rf := *c.state.RadiusFilter
		s.RadiusFilter = &rf
	}
	return s
}

// Viewport returns the current camera position.
func (c *Controller) Viewport() model.Viewport {
	return c.state.Viewport
}

// SetViewport applies a pan/zoom event from the UI.
func (c *Controller) SetViewport(vp model.Viewport) {
	c.state.Viewport = vp
}

// SetProvince moves the camera to a province preset. ProvinceAll or an
// unknown province resets to the national overview. The previous
// viewport slot is not touched.
func (c *Controller) SetProvince(name string) {
	if vp, ok := c.provinces[strings.ToUpper(name)]; ok && name != ProvinceAll {
		c.state.Viewport = vp
		return
	}
	c.state.Viewport = c.home
}

// ExpandCluster saves the current viewport into the single previous
// slot (overwriting whatever was there) and zooms to the level at which
// the cluster splits, centered on its centroid.
func (c *Controller) ExpandCluster(clusterID int, centroidLat, centroidLon float64, src ExpansionSource) {
	prev := c.state.Viewport
	c.state.PreviousViewport = &prev

	zoom := c.state.Viewport.Zoom + 1
	if src != nil {
		if ez, err := src.ExpansionZoom(clusterID); err == nil {
			zoom = float64(ez)
		}
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}

	c.state.Viewport = model.Viewport{Lat: centroidLat, Lon: centroidLon, Zoom: zoom}
}

// SelectPoint toggles selection of a report. A second click on the
// already-selected report restores the previous viewport (if any),
// clears the slot, and clears the selection.
func (c *Controller) SelectPoint(r *model.Report) {
	if c.state.SelectedPointID == r.ID {
		if c.state.PreviousViewport != nil {
			c.state.Viewport = *c.state.PreviousViewport
			c.state.PreviousViewport = nil
		}
		c.state.SelectedPointID = ""
		return
	}
	c.state.SelectedPointID = r.ID
}

// SelectedPointID returns the id of the selected report, or "".
func (c *Controller) SelectedPointID() string {
	return c.state.SelectedPointID
}

// SetRadiusFilter restricts downstream report filtering to a circle.
// The effective report set recomputes on next access.
func (c *Controller) SetRadiusFilter(lat, lon, radiusKm float64) {
	c.state.RadiusFilter = &model.RadiusFilter{Lat: lat, Lon: lon, RadiusKm: radiusKm}
}

// ClearRadiusFilter removes the radius filter.
func (c *Controller) ClearRadiusFilter() {
	c.state.RadiusFilter = nil
}

// RadiusFilter returns the active filter, or nil.
func (c *Controller) RadiusFilter() *model.RadiusFilter {
	if c.state.RadiusFilter == nil {
		return nil
	}
	rf := *c.state.RadiusFilter
	return &rf
}
