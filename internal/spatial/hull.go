package spatial

import (
	"math"
	"sort"
)

// collinearEpsilon is the cross product (square meters) below which three points are
// treated as collinear
const collinearEpsilon = 1e-6

func cross(o, a, b XY) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull returns the convex hull of points in counter-clockwise order using Andrew's
// monotone chain. Collinear boundary points are dropped, so a hull with fewer than three
// vertices means the input was a single point or a line.
func ConvexHull(points []XY) []XY {
	pts := make([]XY, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	// Dedupe
	uniq := pts[:0]
	for i, p := range pts {
		if i > 0 && p == uniq[len(uniq)-1] {
			continue
		}
		uniq = append(uniq, p)
	}
	pts = uniq

	if len(pts) < 3 {
		return pts
	}

	hull := make([]XY, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= collinearEpsilon {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= collinearEpsilon {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		// All points on one line: keep the two extremes
		return []XY{pts[0], pts[len(pts)-1]}
	}
	return hull
}

// InHull reports whether p lies inside or on the counter-clockwise hull, allowing tol meters
// outside the boundary
func InHull(hull []XY, p XY, tol float64) bool {
	switch len(hull) {
	case 0:
		return false
	case 1:
		return Dist(hull[0], p) <= tol
	case 2:
		return Dist(closestOnSegment(hull[0], hull[1], p), p) <= tol
	}

	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		edge := Dist(a, b)
		if edge == 0 {
			continue
		}
		// Signed distance to the left of edge a→b
		if cross(a, b, p)/edge < -tol {
			return false
		}
	}
	return true
}

// ClampToHull returns p if it lies within the hull, otherwise the nearest point on the hull
// boundary
func ClampToHull(hull []XY, p XY) XY {
	if len(hull) == 0 {
		return p
	}
	if len(hull) >= 3 && InHull(hull, p, 0) {
		return p
	}
	if len(hull) == 1 {
		return hull[0]
	}

	best := hull[0]
	bestDist := math.Inf(1)
	n := len(hull)
	if n == 2 {
		n = 1
	}
	for i := 0; i < n; i++ {
		c := closestOnSegment(hull[i], hull[(i+1)%len(hull)], p)
		if d := Dist(c, p); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func closestOnSegment(a, b, p XY) XY {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return XY{X: a.X + t*dx, Y: a.Y + t*dy}
}
