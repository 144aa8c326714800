package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Box is a latitude/longitude rectangle in degrees
type Box struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Contains reports whether the point lies inside the box
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a rectangle enclosing every point within radius meters of (lat, lon).
// When the circle reaches a pole or crosses the antimeridian the box spans all longitudes.
func BoundingBox(lat, lon, radius float64) Box {
	angular := radius / EarthRadiusMeters
	dLat := angular * 180 / math.Pi

	box := Box{MinLat: lat - dLat, MaxLat: lat + dLat, MinLon: -180, MaxLon: 180}
	if box.MaxLat >= 90 || box.MinLat <= -90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		return box
	}

	dLon := math.Asin(math.Sin(angular)/math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	if lon-dLon < -180 || lon+dLon > 180 {
		return box
	}
	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}
