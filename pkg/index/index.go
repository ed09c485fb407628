// Package index builds an immutable spatial index over a report set and
// answers viewport cluster queries against it. The index is rebuilt
// wholesale when the report set changes and never mutated in place, so
// concurrent readers may hold a reference to one build while the next
// is produced.
//
// Clustering is hierarchical: reports are projected to normalized web
// mercator space and merged bottom-up, one pass per zoom level, with a
// merge radius that halves at each zoom step. A cluster visible at zoom
// z therefore only splits (never merges) as zoom increases.
package index

import (
	"errors"
	"math"

	"github.com/paulmach/orb"

	"floodmap/pkg/model"
)

// ErrStaleCluster is returned when a cluster id does not belong to this
// index build, typically because the caller queried a rebuilt index
// with an id from a previous one.
var ErrStaleCluster = errors.New("index: unknown or stale cluster id")

// Options control cluster granularity.
type Options struct {
	MinZoom   int     // lowest zoom clustered (default 0)
	MaxZoom   int     // highest zoom clustered (default 20)
	Radius    float64 // cluster radius in pixels at the given Extent (default 60)
	Extent    int     // tile extent in pixels (default 512)
	MinPoints int     // minimum points to form a cluster (default 2)
	NodeSize  int     // kd-tree leaf size (default 64)
}

func (o Options) withDefaults() Options {
	if o.MaxZoom <= 0 {
		o.MaxZoom = 20
	}
	if o.MaxZoom > 30 {
		o.MaxZoom = 30 // id encoding reserves 5 bits for the zoom
	}
	if o.MinZoom < 0 {
		o.MinZoom = 0
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom = o.MaxZoom
	}
	if o.Radius <= 0 {
		o.Radius = 60
	}
	if o.Extent <= 0 {
		o.Extent = 512
	}
	if o.MinPoints <= 0 {
		o.MinPoints = 2
	}
	if o.NodeSize <= 0 {
		o.NodeSize = 64
	}
	return o
}

// Ref is one entry of a cluster query result: either an aggregated
// cluster or a direct reference to an isolated report.
type Ref struct {
	IsCluster  bool
	ClusterID  int
	Lon, Lat   float64
	PointCount int
	Report     *model.Report // set when !IsCluster
}

// item is one point at one zoom level. For leaves ID is the report
// index; for clusters it encodes (origin index << 5) + origin zoom.
type item struct {
	X, Y      float64
	ID        int
	NumPoints int
	ParentID  int
}

type level struct {
	items []item
	tree  *kdTree
}

func newLevel(items []item, nodeSize int) *level {
	xs := make([]float64, len(items))
	ys := make([]float64, len(items))
	for i, it := range items {
		xs[i] = it.X
		ys[i] = it.Y
	}
	return &level{items: items, tree: newKDTree(xs, ys, nodeSize)}
}

// Index is one immutable build over a report set.
type Index struct {
	opts    Options
	reports []model.Report
	levels  []*level // indexed by zoom, MinZoom..MaxZoom+1
}

// Build indexes the given reports. Reports without coordinates are
// excluded. The returned index is immutable; a changed report set
// requires a new Build.
func Build(reports []model.Report, opts Options) *Index {
	opts = opts.withDefaults()

	ix := &Index{
		opts:   opts,
		levels: make([]*level, opts.MaxZoom+2),
	}
	for _, r := range reports {
		if !r.HasCoords {
			continue
		}
		ix.reports = append(ix.reports, r)
	}

	base := make([]item, len(ix.reports))
	for i, r := range ix.reports {
		base[i] = item{
			X:         lngX(r.Lon),
			Y:         latY(r.Lat),
			ID:        i,
			NumPoints: 1,
			ParentID:  -1,
		}
	}
	ix.levels[opts.MaxZoom+1] = newLevel(base, opts.NodeSize)

	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		ix.levels[z] = ix.clusterLevel(ix.levels[z+1], z)
	}
	return ix
}

// Size returns the number of indexed reports (those with coordinates).
func (ix *Index) Size() int {
	return len(ix.reports)
}

// clusterLevel merges the parent level's points with the radius for
// zoom z. Points absorbed into a cluster record the cluster id as their
// parent; everything else carries over unchanged.
func (ix *Index) clusterLevel(parent *level, z int) *level {
	r := ix.clusterRadius(z)
	items := make([]item, 0, len(parent.items))
	absorbed := make([]bool, len(parent.items))

	for i := range parent.items {
		if absorbed[i] {
			continue
		}
		absorbed[i] = true
		p := parent.items[i]

		neighbors := parent.tree.Within(p.X, p.Y, r)
		numPoints := p.NumPoints
		for _, nb := range neighbors {
			if !absorbed[nb] {
				numPoints += parent.items[nb].NumPoints
			}
		}

		if numPoints == p.NumPoints || numPoints < ix.opts.MinPoints {
			items = append(items, p)
			continue
		}

		id := (i << 5) + (z + 1)
		wx := p.X * float64(p.NumPoints)
		wy := p.Y * float64(p.NumPoints)
		parent.items[i].ParentID = id

		for _, nb := range neighbors {
			if absorbed[nb] {
				continue
			}
			absorbed[nb] = true
			q := &parent.items[nb]
			q.ParentID = id
			wx += q.X * float64(q.NumPoints)
			wy += q.Y * float64(q.NumPoints)
		}

		items = append(items, item{
			X:         wx / float64(numPoints),
			Y:         wy / float64(numPoints),
			ID:        id,
			NumPoints: numPoints,
			ParentID:  -1,
		})
	}
	return newLevel(items, ix.opts.NodeSize)
}

// Query returns the clusters and isolated points inside bbox at the
// given zoom. Calling it twice on the same build with the same
// arguments yields the same partition in the same order.
func (ix *Index) Query(bbox orb.Bound, zoom int) []Ref {
	z := zoom
	if z < ix.opts.MinZoom {
		z = ix.opts.MinZoom
	}
	if z > ix.opts.MaxZoom+1 {
		z = ix.opts.MaxZoom + 1
	}
	lv := ix.levels[z]

	minX := lngX(bbox.Min[0])
	maxX := lngX(bbox.Max[0])
	if bbox.Max[0]-bbox.Min[0] >= 360 || minX > maxX {
		minX, maxX = 0, 1
	}
	// Mercator y grows southward
	minY := latY(bbox.Max[1])
	maxY := latY(bbox.Min[1])

	ids := lv.tree.Range(minX, minY, maxX, maxY)
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		it := lv.items[id]
		if it.NumPoints > 1 {
			refs = append(refs, Ref{
				IsCluster:  true,
				ClusterID:  it.ID,
				Lon:        xLng(it.X),
				Lat:        yLat(it.Y),
				PointCount: it.NumPoints,
			})
		} else {
			refs = append(refs, Ref{
				Lon:    xLng(it.X),
				Lat:    yLat(it.Y),
				Report: &ix.reports[it.ID],
			})
		}
	}
	return refs
}

// Leaves returns up to limit member reports of the cluster, in a
// deterministic order for a fixed build. limit <= 0 returns all
// members.
func (ix *Index) Leaves(clusterID, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = math.MaxInt
	}
	var leaves []model.Report
	if err := ix.collectLeaves(clusterID, limit, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (ix *Index) collectLeaves(clusterID, limit int, out *[]model.Report) error {
	children, err := ix.children(clusterID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if len(*out) >= limit {
			return nil
		}
		if c.NumPoints > 1 {
			if err := ix.collectLeaves(c.ID, limit, out); err != nil {
				return err
			}
		} else {
			*out = append(*out, ix.reports[c.ID])
		}
	}
	return nil
}

// ExpansionZoom returns the minimum zoom at which the cluster first
// splits into smaller groups or individual points. Callers clamp the
// result to their platform maximum.
func (ix *Index) ExpansionZoom(clusterID int) (int, error) {
	id := clusterID
	expansionZoom := originZoom(clusterID) - 1
	// Resolve the id unconditionally: a stale or garbage id must fail
	// even when its encoded zoom is already past MaxZoom.
	for {
		children, err := ix.children(id)
		if err != nil {
			return 0, err
		}
		expansionZoom++
		if len(children) != 1 || expansionZoom > ix.opts.MaxZoom {
			break
		}
		only := children[0]
		if only.NumPoints <= 1 {
			break
		}
		id = only.ID
	}
	return expansionZoom, nil
}

// children resolves a cluster id to the items it was merged from at the
// next-higher zoom level.
func (ix *Index) children(clusterID int) ([]item, error) {
	oz := originZoom(clusterID)
	idx := clusterID >> 5
	if oz <= ix.opts.MinZoom || oz > ix.opts.MaxZoom+1 {
		return nil, ErrStaleCluster
	}
	lv := ix.levels[oz]
	if idx >= len(lv.items) || lv.items[idx].ParentID != clusterID {
		return nil, ErrStaleCluster
	}

	origin := lv.items[idx]
	r := ix.clusterRadius(oz - 1)
	var children []item
	for _, nb := range lv.tree.Within(origin.X, origin.Y, r) {
		if lv.items[nb].ParentID == clusterID {
			children = append(children, lv.items[nb])
		}
	}
	if len(children) == 0 {
		return nil, ErrStaleCluster
	}
	return children, nil
}

func (ix *Index) clusterRadius(z int) float64 {
	return ix.opts.Radius / (float64(ix.opts.Extent) * math.Pow(2, float64(z)))
}

func originZoom(clusterID int) int {
	return clusterID & 31
}

// Normalized web mercator projection.

func lngX(lng float64) float64 {
	return lng/360 + 0.5
}

func latY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

func xLng(x float64) float64 {
	return (x - 0.5) * 360
}

func yLat(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}
