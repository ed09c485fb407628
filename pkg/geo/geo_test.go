package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	// One degree of longitude at the equator.
	d := DistanceKm(Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 1})
	want := 6371.0 * math.Pi / 180
	if math.Abs(d-want) > 0.01 {
		t.Errorf("DistanceKm equator degree = %f; want %f", d, want)
	}

	// Symmetry
	a := Point{Lat: 16.0, Lon: 107.5}
	b := Point{Lat: 21.0278, Lon: 105.8342}
	if math.Abs(DistanceKm(a, b)-DistanceKm(b, a)) > 1e-9 {
		t.Errorf("DistanceKm not symmetric: %f vs %f", DistanceKm(a, b), DistanceKm(b, a))
	}

	// Zero distance
	if d := DistanceKm(a, a); d != 0 {
		t.Errorf("DistanceKm(a,a) = %f; want 0", d)
	}
}

func TestWithinRadiusKm(t *testing.T) {
	center := Point{Lat: 16.0, Lon: 107.5}
	near := Point{Lat: 16.01, Lon: 107.51} // ~1.6km
	far := Point{Lat: 17.0, Lon: 108.5}    // ~150km

	if !WithinRadiusKm(center, near, 5) {
		t.Error("near point should be within 5km")
	}
	if WithinRadiusKm(center, far, 5) {
		t.Error("far point should not be within 5km")
	}
}

func TestBoundingBoxScaling(t *testing.T) {
	center := Point{Lat: 16.0, Lon: 107.5}

	tests := []struct {
		zoom     float64
		wantHalf float64 // expected half-width in longitude degrees
	}{
		{3, 22.5},
		{4, 11.25},
		{5, 5.625},
	}

	for _, tt := range tests {
		b := BoundingBox(center, tt.zoom)
		gotHalf := (b.Max[0] - b.Min[0]) / 2
		if math.Abs(gotHalf-tt.wantHalf) > 1e-9 {
			t.Errorf("zoom %.0f: half-width = %f; want %f", tt.zoom, gotHalf, tt.wantHalf)
		}
		// Latitude span is half the longitude span
		latHalf := (b.Max[1] - b.Min[1]) / 2
		if math.Abs(latHalf-tt.wantHalf/2) > 1e-9 {
			t.Errorf("zoom %.0f: half-height = %f; want %f", tt.zoom, latHalf, tt.wantHalf/2)
		}
	}

	// Each zoom step halves the span
	b3 := BoundingBox(center, 3)
	b4 := BoundingBox(center, 4)
	if math.Abs((b3.Max[0]-b3.Min[0])/(b4.Max[0]-b4.Min[0])-2) > 1e-9 {
		t.Error("bbox width should halve per zoom step")
	}
}

func TestBoundingBoxClamped(t *testing.T) {
	b := BoundingBox(Point{Lat: 89, Lon: 179}, 1)
	if b.Max[0] > 180 || b.Max[1] > 90 {
		t.Errorf("bbox not clamped to world bounds: %v", b)
	}
}

func TestCirclePolygon(t *testing.T) {
	center := Point{Lat: 16.0, Lon: 107.5}
	radiusKm := 25.0
	poly := CirclePolygon(center, radiusKm, 64)

	if len(poly) != 1 {
		t.Fatalf("expected single ring, got %d", len(poly))
	}
	ring := poly[0]
	if len(ring) != 65 {
		t.Fatalf("expected 65 vertices (closed), got %d", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Error("ring is not closed")
	}

	// Every vertex is roughly radiusKm away from the center.
	for i, p := range ring[:len(ring)-1] {
		d := DistanceKm(center, Point{Lat: p[1], Lon: p[0]})
		if math.Abs(d-radiusKm) > radiusKm*0.05 {
			t.Errorf("vertex %d at %f km from center; want ~%f", i, d, radiusKm)
		}
	}
}

func TestCirclePolygonDefaultSegments(t *testing.T) {
	poly := CirclePolygon(Point{Lat: 10, Lon: 10}, 5, 0)
	if len(poly[0]) != 65 {
		t.Errorf("expected default 64 segments, got %d vertices", len(poly[0]))
	}
}
