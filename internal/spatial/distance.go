package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371000.0

// HaversineDistance returns the great-circle distance in meters between two positions
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

// DestinationPoint walks distance meters from lat/lon along bearing (degrees clockwise
// from north) and returns the end position
func DestinationPoint(lat, lon, bearing, distance float64) (float64, float64) {
	start := s2.LatLngFromDegrees(lat, lon)
	theta := (s1.Angle(bearing) * s1.Degree).Radians()
	delta := distance / EarthRadiusMeters

	sinLat, cosLat := math.Sincos(start.Lat.Radians())
	sinDelta, cosDelta := math.Sincos(delta)
	sinTheta, cosTheta := math.Sincos(theta)

	lat2 := math.Asin(sinLat*cosDelta + cosLat*sinDelta*cosTheta)
	lon2 := start.Lng.Radians() + math.Atan2(sinTheta*sinDelta*cosLat, cosDelta-sinLat*math.Sin(lat2))

	end := s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lon2)}.Normalized()
	return end.Lat.Degrees(), end.Lng.Degrees()
}

// ValidCoordinate reports whether lat/lon are finite and inside WGS84 bounds
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
