// Package density buckets reports into H3 cells for the heat-overlay
// collaborator. It is independent of the cluster index: cells are a
// coarse screen-space summary, clusters are the interactive markers.
package density

import (
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"floodmap/pkg/model"
)

// Cell is a per-H3-cell summary of the reports inside it.
type Cell struct {
	ID          string  `json:"id"` // H3 cell index, hex-encoded
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Count       int     `json:"count"`
	UrgentCount int     `json:"urgent_count"`
}

// ResolutionForZoom maps a map zoom level to an H3 resolution so that
// cell size roughly tracks marker spacing on screen.
func ResolutionForZoom(zoom float64) int {
	res := int(zoom+2) / 2
	if res < 1 {
		res = 1
	}
	if res > 10 {
		res = 10
	}
	return res
}

// Summarize buckets the reports with coordinates into H3 cells at the
// given resolution. flags may be nil; urgent counts are then zero.
// Cells are returned sorted by id for deterministic output.
func Summarize(reports []model.Report, flags map[string]model.UrgencyFlags, resolution int) ([]Cell, error) {
	type bucket struct {
		count  int
		urgent int
	}
	buckets := make(map[h3.Cell]*bucket)

	for i := range reports {
		r := &reports[i]
		if !r.HasCoords {
			continue
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: r.Lat, Lng: r.Lon}, resolution)
		if err != nil {
			return nil, err
		}
		b := buckets[cell]
		if b == nil {
			b = &bucket{}
			buckets[cell] = b
		}
		b.count++
		if flags != nil && flags[r.ID].IsUrgent {
			b.urgent++
		}
	}

	cells := make([]Cell, 0, len(buckets))
	for cell, b := range buckets {
		center, err := h3.CellToLatLng(cell)
		if err != nil {
			return nil, err
		}
		cells = append(cells, Cell{
			ID:          cell.String(),
			Lat:         center.Lat,
			Lon:         center.Lng,
			Count:       b.count,
			UrgentCount: b.urgent,
		})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells, nil
}
