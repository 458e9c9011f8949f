// Package geo ranks retail stores by great-circle distance from a visitor.
package geo

import (
	"math"

	"github.com/jftuga/geodist"

	"github.com/moveis-planejados/lead-api/internal/model"
)

// Search radii used by the site's forms (kilometers).
const (
	// LocatorRadiusKm bounds the public store locator.
	LocatorRadiusKm = 300.0
)

// Unbounded is the cutoff used by the lead forms' nearest-store picker, which
// lists every store regardless of distance.
var Unbounded = math.Inf(1)

// Distance returns the haversine distance between a and b in kilometers
// (Earth radius 6371 km).
func Distance(a, b model.Coordinate) float64 {
	_, km := geodist.HaversineDistance(
		geodist.Coord{Lat: a.Lat, Lon: a.Lng},
		geodist.Coord{Lat: b.Lat, Lon: b.Lng},
	)
	return km
}
