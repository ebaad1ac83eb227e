package spatial

import "math"

// Point is a WGS84 position in degrees
type Point struct {
	Lat float64
	Lon float64
}

// WrapLongitude maps any longitude, or longitude difference, into [-180, 180)
func WrapLongitude(lon float64) float64 {
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}

// Centroid is the plain mean of points. Longitudes are averaged as offsets from the first
// point, so points on both sides of the antimeridian stay together. The zero Point for no
// input.
func Centroid(points []Point) Point {
	var c Point
	if len(points) == 0 {
		return c
	}
	ref := points[0].Lon
	var dLon float64
	for _, p := range points {
		c.Lat += p.Lat
		dLon += WrapLongitude(p.Lon - ref)
	}
	n := float64(len(points))
	c.Lat /= n
	c.Lon = WrapLongitude(ref + dLon/n)
	return c
}
