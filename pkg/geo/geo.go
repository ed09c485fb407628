package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

const earthRadiusKm = 6371.0

// DistanceKm calculates the Haversine distance between two points in
// kilometers. Symmetric within floating-point tolerance.
func DistanceKm(p1, p2 Point) float64 {
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLon := (p2.Lon - p1.Lon) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// WithinRadiusKm reports whether p is within radiusKm of center.
func WithinRadiusKm(center, p Point, radiusKm float64) bool {
	return DistanceKm(center, p) <= radiusKm
}

// BoundingBox returns [west, south, east, north] around center, sized
// inversely proportional to 2^zoom so that the visible degree span
// halves with each zoom step, matching the clustering query radius
// which scales the same way. Clamped to world bounds.
func BoundingBox(center Point, zoom float64) orb.Bound {
	scale := math.Pow(2, zoom)
	halfLon := 180.0 / scale
	halfLat := 90.0 / scale

	west := math.Max(center.Lon-halfLon, -180)
	east := math.Min(center.Lon+halfLon, 180)
	south := math.Max(center.Lat-halfLat, -90)
	north := math.Min(center.Lat+halfLat, 90)

	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}

// CirclePolygon approximates a circle of radiusKm around center as a
// closed polygon in degree space. Longitude degrees shrink with
// latitude, compensated by cos(lat). Used by the radius-filter overlay,
// not by clustering.
func CirclePolygon(center Point, radiusKm float64, segments int) orb.Polygon {
	if segments <= 0 {
		segments = 64
	}

	latRad := center.Lat * (math.Pi / 180.0)
	degLat := radiusKm / 111.132
	cosLat := math.Cos(latRad)
	if cosLat < 1e-6 {
		cosLat = 1e-6 // near the poles a degree of longitude degenerates
	}
	degLon := degLat / cosLat

	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{
			center.Lon + degLon*math.Cos(theta),
			center.Lat + degLat*math.Sin(theta),
		})
	}
	// Close the ring
	ring = append(ring, ring[0])

	return orb.Polygon{ring}
}
