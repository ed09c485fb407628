// Package engine ties the index, severity, and navigation layers into
// the facade the presentation layer consumes. It owns the report set
// lifecycle: the spatial index is rebuilt only when the effective
// report set changes (new fetch cycle, radius filter change), never on
// pan/zoom; viewport queries are memoized per (set version, bbox,
// zoom).
package engine

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"floodmap/pkg/config"
	"floodmap/pkg/density"
	"floodmap/pkg/geo"
	"floodmap/pkg/index"
	"floodmap/pkg/model"
	"floodmap/pkg/nav"
	"floodmap/pkg/severity"
	"floodmap/pkg/stats"
)

// queryCacheCap bounds the memoized viewport queries per build. Pans
// produce many keys; the cache is cleared wholesale when full since all
// entries share the same (cheap to recompute) build anyway.
const queryCacheCap = 64

type cacheKey struct {
	version uint64
	latE6   int64
	lonE6   int64
	zoomE3  int64
}

// build is one immutable index generation with its derived data.
type build struct {
	index *index.Index
	flags map[string]model.UrgencyFlags
	agg   *severity.Aggregator
}

// Engine is the cluster-aggregation engine. All methods are safe for
// use from a single UI event goroutine; the index swap is guarded so a
// multi-threaded host may also query concurrently.
type Engine struct {
	mu      sync.Mutex
	logger  *slog.Logger
	cfg     *config.Config
	metrics *stats.Metrics
	clock   clockwork.Clock

	nav     *nav.Controller
	raw     []model.Report
	version uint64
	build   *build
	cache   map[cacheKey]*geojson.FeatureCollection
}

// New creates an engine from configuration. metrics may be nil.
func New(cfg *config.Config, logger *slog.Logger, metrics *stats.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	provinces := make(map[string]model.Viewport, len(cfg.Map.Provinces))
	for name, p := range cfg.Map.Provinces {
		provinces[name] = model.Viewport{Lat: p.Lat, Lon: p.Lon, Zoom: p.Zoom}
	}
	home := model.Viewport{Lat: cfg.Map.Default.Lat, Lon: cfg.Map.Default.Lon, Zoom: cfg.Map.Default.Zoom}

	return &Engine{
		logger:  logger,
		cfg:     cfg,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		nav:     nav.New(home, provinces),
		cache:   make(map[cacheKey]*geojson.FeatureCollection),
	}
}

// SetClock swaps the time source used by the staleness filter. Tests
// inject a fake clock for deterministic output.
func (e *Engine) SetClock(c clockwork.Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c == nil {
		c = clockwork.NewRealClock()
	}
	e.clock = c
}

// SetReports replaces the report set (one fetch cycle) and rebuilds the
// spatial index over the effective set.
func (e *Engine) SetReports(reports []model.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raw = reports
	e.rebuildLocked()
}

// Version returns the current report-set version. It increments on
// every rebuild; cached query results from older versions are invalid.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// rebuildLocked recomputes the effective set, the index, and the
// per-report urgency flags. Callers hold e.mu.
func (e *Engine) rebuildLocked() {
	start := time.Now()

	effective := e.effectiveReportsLocked()
	th := severity.Thresholds{
		UrgentTrustMin: e.cfg.Severity.UrgentTrustMin,
		RainTrustMin:   e.cfg.Severity.RainTrustMin,
	}
	flags := make(map[string]model.UrgencyFlags, len(effective))
	for i := range effective {
		flags[effective[i].ID] = severity.ComputeFlags(&effective[i], th)
	}

	ix := index.Build(effective, index.Options{
		MinZoom:   e.cfg.Cluster.MinZoom,
		MaxZoom:   e.cfg.Cluster.MaxZoom,
		Radius:    e.cfg.Cluster.RadiusPx,
		Extent:    e.cfg.Cluster.Extent,
		MinPoints: e.cfg.Cluster.MinPoints,
	})

	agg := severity.NewAggregator(ix, flags, e.cfg.Severity.SampleSize)
	if e.metrics != nil {
		agg.OnFallback = e.metrics.SeverityFallbacks.Inc
	}

	e.build = &build{index: ix, flags: flags, agg: agg}
	e.version++
	e.cache = make(map[cacheKey]*geojson.FeatureCollection)

	if e.metrics != nil {
		e.metrics.IndexRebuilds.Inc()
		e.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
		e.metrics.IndexedReports.Set(float64(ix.Size()))
	}
	e.logger.Debug("index rebuilt",
		"version", e.version,
		"reports", len(e.raw),
		"indexed", ix.Size(),
		"took", time.Since(start))
}

// effectiveReportsLocked applies the staleness and radius filters to
// the raw set. Filtering the same set twice yields identical results.
func (e *Engine) effectiveReportsLocked() []model.Report {
	maxAge := e.cfg.Reports.MaxAge.Std()
	rf := e.nav.RadiusFilter()
	if maxAge <= 0 && rf == nil {
		return e.raw
	}

	now := e.clock.Now()
	out := make([]model.Report, 0, len(e.raw))
	for _, r := range e.raw {
		if maxAge > 0 && r.Age(now) > maxAge {
			continue
		}
		if rf != nil {
			if !r.HasCoords {
				continue
			}
			center := geo.Point{Lat: rf.Lat, Lon: rf.Lon}
			if !geo.WithinRadiusKm(center, geo.Point{Lat: r.Lat, Lon: r.Lon}, rf.RadiusKm) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// FeaturesAt returns the renderable features for a viewport: cluster
// markers with aggregated severity, point markers with marker severity.
// Results are memoized per (version, bbox, zoom) and re-derived only on
// cache miss.
func (e *Engine) FeaturesAt(vp model.Viewport) *geojson.FeatureCollection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.build == nil {
		return geojson.NewFeatureCollection()
	}

	// The bbox is derived from the continuous zoom, so the key must
	// carry it at full precision too: flooring here would collide
	// viewports with different bboxes.
	key := cacheKey{
		version: e.version,
		latE6:   int64(math.Round(vp.Lat * 1e6)),
		lonE6:   int64(math.Round(vp.Lon * 1e6)),
		zoomE3:  int64(math.Round(vp.Zoom * 1e3)),
	}
	if fc, ok := e.cache[key]; ok {
		if e.metrics != nil {
			e.metrics.QueryCache.WithLabelValues("hit").Inc()
		}
		return copyCollection(fc)
	}
	if e.metrics != nil {
		e.metrics.QueryCache.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	bbox := geo.BoundingBox(geo.Point{Lat: vp.Lat, Lon: vp.Lon}, vp.Zoom)
	refs := e.build.index.Query(bbox, int(math.Floor(vp.Zoom)))

	fc := geojson.NewFeatureCollection()
	for _, ref := range refs {
		fc.Append(e.featureFor(ref))
	}

	if len(e.cache) >= queryCacheCap {
		e.cache = make(map[cacheKey]*geojson.FeatureCollection)
	}
	e.cache[key] = fc

	if e.metrics != nil {
		e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	return copyCollection(fc)
}

// copyCollection shallow-copies the feature slice so callers can append
// or reorder without corrupting the cached collection.
func copyCollection(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	out.Features = append(out.Features, fc.Features...)
	return out
}

func (e *Engine) featureFor(ref index.Ref) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{ref.Lon, ref.Lat})
	if ref.IsCluster {
		f.Properties["cluster"] = true
		f.Properties["cluster_id"] = ref.ClusterID
		f.Properties["point_count"] = ref.PointCount
		f.Properties["severity"] = string(e.build.agg.ClusterSeverity(ref.ClusterID, ref.PointCount))
		return f
	}

	th := severity.Thresholds{
		UrgentTrustMin: e.cfg.Severity.UrgentTrustMin,
		RainTrustMin:   e.cfg.Severity.RainTrustMin,
	}
	f.Properties["cluster"] = false
	f.Properties["report_id"] = ref.Report.ID
	f.Properties["category"] = string(ref.Report.Category)
	f.Properties["trust_score"] = ref.Report.TrustScore
	f.Properties["severity"] = string(severity.MarkerSeverity(ref.Report, th))
	return f
}

// ClusterLeaves returns up to limit member reports of a cluster from
// the current build.
func (e *Engine) ClusterLeaves(clusterID, limit int) ([]model.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.build == nil {
		return nil, index.ErrStaleCluster
	}
	return e.build.index.Leaves(clusterID, limit)
}

// Navigation state transitions. These delegate to the controller so
// the presentation layer has one entry point.

// Viewport returns the current camera state.
func (e *Engine) Viewport() model.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.Viewport()
}

// State returns a snapshot of the full navigation state.
func (e *Engine) State() model.ViewportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.State()
}

// SetViewport applies a pan/zoom event.
func (e *Engine) SetViewport(vp model.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nav.SetViewport(vp)
}

// SetProvince moves the camera to a province preset, or the national
// overview for ProvinceAll or an unknown name.
func (e *Engine) SetProvince(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nav.SetProvince(name)
}

// ExpandCluster zooms to the level where the cluster splits.
func (e *Engine) ExpandCluster(clusterID int, centroidLat, centroidLon float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var src nav.ExpansionSource
	if e.build != nil {
		src = e.build.index
	}
	e.nav.ExpandCluster(clusterID, centroidLat, centroidLon, src)
}

// SelectPoint toggles report selection (second click restores the
// pre-expansion viewport).
func (e *Engine) SelectPoint(r *model.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nav.SelectPoint(r)
}

// SelectedReport returns the currently selected report, or nil.
func (e *Engine) SelectedReport() *model.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nav.SelectedPointID()
	if id == "" {
		return nil
	}
	for i := range e.raw {
		if e.raw[i].ID == id {
			r := e.raw[i]
			return &r
		}
	}
	return nil
}

// SetRadiusFilter restricts the effective set to a circle and rebuilds.
func (e *Engine) SetRadiusFilter(lat, lon, radiusKm float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nav.SetRadiusFilter(lat, lon, radiusKm)
	e.rebuildLocked()
}

// ClearRadiusFilter restores the unfiltered set and rebuilds.
func (e *Engine) ClearRadiusFilter() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nav.ClearRadiusFilter()
	e.rebuildLocked()
}

// RadiusOverlay returns the active radius filter as a polygon for the
// visualization collaborator, or nil when no filter is set.
func (e *Engine) RadiusOverlay(segments int) orb.Polygon {
	e.mu.Lock()
	defer e.mu.Unlock()
	rf := e.nav.RadiusFilter()
	if rf == nil {
		return nil
	}
	return geo.CirclePolygon(geo.Point{Lat: rf.Lat, Lon: rf.Lon}, rf.RadiusKm, segments)
}

// DensityCells summarizes the effective report set into H3 cells at a
// resolution derived from the given zoom.
func (e *Engine) DensityCells(zoom float64) ([]density.Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	effective := e.effectiveReportsLocked()
	var flags map[string]model.UrgencyFlags
	if e.build != nil {
		flags = e.build.flags
	}
	return density.Summarize(effective, flags, density.ResolutionForZoom(zoom))
}
