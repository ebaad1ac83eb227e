package spatial

import "math"

// XY is a point on a local tangent plane, in meters east (X) and north (Y) of the origin
type XY struct {
	X float64
	Y float64
}

// Plane is an equirectangular projection centred on Origin.
//
// Over baselines of a few kilometres the distortion relative to great-circle distance stays
// well below a meter, far smaller than the uncertainty of locating a tower from signal
// strength, so all multilateration arithmetic runs in this plane.
type Plane struct {
	Origin Point
	cosLat float64
}

// NewPlane creates a projection centred on origin
func NewPlane(origin Point) Plane {
	return Plane{
		Origin: origin,
		cosLat: math.Cos(origin.Lat * math.Pi / 180),
	}
}

// metersPerDegree is the length of one degree of latitude on the mean sphere
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

// Project maps a geographic point onto the plane. Longitude offsets take the short way
// around, so the plane is continuous across the antimeridian.
func (p Plane) Project(pt Point) XY {
	return XY{
		X: WrapLongitude(pt.Lon-p.Origin.Lon) * metersPerDegree * p.cosLat,
		Y: (pt.Lat - p.Origin.Lat) * metersPerDegree,
	}
}

// Unproject maps a plane point back to latitude/longitude
func (p Plane) Unproject(xy XY) Point {
	lon := p.Origin.Lon
	if p.cosLat > 1e-12 {
		lon += xy.X / (metersPerDegree * p.cosLat)
	}
	return Point{
		Lat: p.Origin.Lat + xy.Y/metersPerDegree,
		Lon: WrapLongitude(lon),
	}
}

// Dist returns the euclidean distance between two plane points
func Dist(a, b XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
