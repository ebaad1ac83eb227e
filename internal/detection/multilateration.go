package detection

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/spatial"
)

// MinConfidence is the confidence of an estimate backed by a single vantage point
const MinConfidence = 0.0

// hullTolerance is how far (meters) a refined estimate may sit outside the anchor hull
// before it is clamped back onto it
const hullTolerance = 1e-6

// Estimate is the estimated position of a transmitter
type Estimate struct {
	Lat        float64
	Lon        float64
	Confidence float64 // 0..1

	Anchors    int     // distinct observer positions
	Refined    bool    // least-squares refinement was applied
	Degenerate bool    // single, double or collinear anchors: centroid-only result
	Clamped    bool    // refinement landed outside the anchor hull and was clamped
	RangeScale float64 // meters per unit of relative range, refined estimates only
}

// Estimator computes transmitter positions from sightings taken at several vantage points
type Estimator struct {
	pathLossExponent float64
	halfLife         time.Duration
	maxIterations    int
}

// NewEstimator creates an estimator from the detection config
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		pathLossExponent: cfg.PathLossExponent,
		halfLife:         cfg.RecencyHalfLife,
		maxIterations:    cfg.MaxIterations,
	}
}

// anchor is one distinct observer position with the combined weight of its sightings
type anchor struct {
	pos    spatial.Point
	xy     spatial.XY
	weight float64
	rho    float64 // relative range, 1 for the strongest reading
}

// EstimatePosition estimates where the transmitter behind sightings is.
//
// Each observer position is an anchor weighted by received power and recency. The weighted
// centroid is the baseline; with three or more non-collinear anchors it is refined by
// damped least squares against relative ranges from a log-distance path-loss model, with the
// common range scale solved alongside the position. The result always lies inside the convex
// hull of the anchors.
func (e *Estimator) EstimatePosition(sightings []models.Sighting) (Estimate, error) {
	if len(sightings) == 0 {
		return Estimate{}, ErrInvalidInput
	}
	if len(sightings) == 1 {
		return Estimate{
			Lat:        sightings[0].Lat,
			Lon:        sightings[0].Lon,
			Confidence: MinConfidence,
			Anchors:    1,
			Degenerate: true,
		}, nil
	}

	anchors := e.buildAnchors(sightings)
	if len(anchors) == 1 {
		return Estimate{
			Lat:        anchors[0].pos.Lat,
			Lon:        anchors[0].pos.Lon,
			Confidence: MinConfidence,
			Anchors:    1,
			Degenerate: true,
		}, nil
	}

	positions := make([]spatial.Point, len(anchors))
	for i, a := range anchors {
		positions[i] = a.pos
	}
	plane := spatial.NewPlane(spatial.Centroid(positions))

	xs := make([]float64, len(anchors))
	ys := make([]float64, len(anchors))
	ws := make([]float64, len(anchors))
	hullInput := make([]spatial.XY, len(anchors))
	for i := range anchors {
		anchors[i].xy = plane.Project(anchors[i].pos)
		xs[i], ys[i], ws[i] = anchors[i].xy.X, anchors[i].xy.Y, anchors[i].weight
		hullInput[i] = anchors[i].xy
	}

	totalWeight := floats.Sum(ws)
	baseline := spatial.XY{
		X: floats.Dot(ws, xs) / totalWeight,
		Y: floats.Dot(ws, ys) / totalWeight,
	}

	hull := spatial.ConvexHull(hullInput)
	if len(anchors) < 3 || len(hull) < 3 {
		pt := plane.Unproject(spatial.ClampToHull(hull, baseline))
		return Estimate{
			Lat:        pt.Lat,
			Lon:        pt.Lon,
			Confidence: centroidConfidence(len(anchors)),
			Anchors:    len(anchors),
			Degenerate: true,
		}, nil
	}

	refined, scale, rms, ok := e.refine(anchors, baseline)
	if !ok {
		pt := plane.Unproject(spatial.ClampToHull(hull, baseline))
		return Estimate{
			Lat:        pt.Lat,
			Lon:        pt.Lon,
			Confidence: centroidConfidence(len(anchors)),
			Anchors:    len(anchors),
		}, nil
	}

	clamped := false
	if !spatial.InHull(hull, refined, hullTolerance) {
		refined = spatial.ClampToHull(hull, refined)
		clamped = true
	}

	pt := plane.Unproject(refined)
	return Estimate{
		Lat:        pt.Lat,
		Lon:        pt.Lon,
		Confidence: refinedConfidence(anchors, scale, rms, clamped),
		Anchors:    len(anchors),
		Refined:    true,
		Clamped:    clamped,
		RangeScale: scale,
	}, nil
}

// buildAnchors collapses sightings taken at the same observer position into one anchor
func (e *Estimator) buildAnchors(sightings []models.Sighting) []anchor {
	maxPower := math.Inf(-1)
	var lastSeen int64
	for _, s := range sightings {
		maxPower = math.Max(maxPower, s.TxPower)
		if s.Timestamp > lastSeen {
			lastSeen = s.Timestamp
		}
	}

	index := make(map[spatial.Point]int)
	var anchors []anchor
	var rhoSums []float64
	for _, s := range sightings {
		w := e.weight(s, maxPower, lastSeen)
		rho := e.relativeRange(s.TxPower, maxPower)

		pos := spatial.Point{Lat: s.Lat, Lon: s.Lon}
		i, ok := index[pos]
		if !ok {
			i = len(anchors)
			index[pos] = i
			anchors = append(anchors, anchor{pos: pos})
			rhoSums = append(rhoSums, 0)
		}
		anchors[i].weight += w
		rhoSums[i] += w * rho
	}

	for i := range anchors {
		anchors[i].rho = rhoSums[i] / anchors[i].weight
	}
	return anchors
}

// weight combines received power (amplitude relative to the strongest reading) with an
// exponential recency decay
func (e *Estimator) weight(s models.Sighting, maxPower float64, lastSeen int64) float64 {
	w := math.Pow(10, (s.TxPower-maxPower)/20)
	if e.halfLife > 0 {
		age := float64(lastSeen-s.Timestamp) / e.halfLife.Seconds()
		w *= math.Pow(0.5, age)
	}
	// Keep very old or very weak readings from vanishing entirely
	return math.Max(w, 1e-9)
}

// relativeRange is the distance implied by a reading relative to the strongest one:
// P = P0 - 10·n·log10(d)  ⇒  d/d_max = 10^((Pmax-P)/(10·n))
func (e *Estimator) relativeRange(power, maxPower float64) float64 {
	return math.Pow(10, (maxPower-power)/(10*e.pathLossExponent))
}

// refine runs Levenberg–Marquardt over (x, y, s) minimising
// Σ w_i (|p - a_i| - s·ρ_i)², starting from the weighted centroid
func (e *Estimator) refine(anchors []anchor, start spatial.XY) (spatial.XY, float64, float64, bool) {
	n := len(anchors)
	theta := []float64{start.X, start.Y, initialScale(anchors, start)}

	cost := func(th []float64) float64 {
		var c float64
		p := spatial.XY{X: th[0], Y: th[1]}
		for _, a := range anchors {
			r := spatial.Dist(p, a.xy) - th[2]*a.rho
			c += a.weight * r * r
		}
		return c
	}

	current := cost(theta)
	lambda := 1e-3
	jac := mat.NewDense(n, 3, nil)
	res := mat.NewVecDense(n, nil)

	for iter := 0; iter < e.maxIterations; iter++ {
		p := spatial.XY{X: theta[0], Y: theta[1]}
		for i, a := range anchors {
			sw := math.Sqrt(a.weight)
			d := spatial.Dist(p, a.xy)
			var dx, dy float64
			if d > 1e-9 {
				dx = (p.X - a.xy.X) / d
				dy = (p.Y - a.xy.Y) / d
			}
			jac.Set(i, 0, sw*dx)
			jac.Set(i, 1, sw*dy)
			jac.Set(i, 2, -sw*a.rho)
			res.SetVec(i, sw*(d-theta[2]*a.rho))
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), res)
		grad.ScaleVec(-1, &grad)

		improved, converged := false, false
		for lambda < 1e12 {
			damped := mat.DenseCopyOf(&jtj)
			for k := 0; k < 3; k++ {
				damped.Set(k, k, jtj.At(k, k)*(1+lambda)+1e-12)
			}

			var step mat.VecDense
			if err := step.SolveVec(damped, &grad); err != nil {
				lambda *= 10
				continue
			}

			next := []float64{
				theta[0] + step.AtVec(0),
				theta[1] + step.AtVec(1),
				theta[2] + step.AtVec(2),
			}
			if next[2] <= 0 {
				next[2] = theta[2] / 2
			}

			if c := cost(next); c < current {
				moved := math.Hypot(step.AtVec(0), step.AtVec(1))
				theta, current = next, c
				lambda = math.Max(lambda/10, 1e-9)
				improved = true
				converged = moved < 1e-4
				break
			}
			lambda *= 10
		}
		if !improved || converged {
			break
		}
	}

	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return spatial.XY{}, 0, 0, false
		}
	}
	if theta[2] <= 0 {
		return spatial.XY{}, 0, 0, false
	}

	var totalWeight float64
	for _, a := range anchors {
		totalWeight += a.weight
	}
	rms := math.Sqrt(current / totalWeight)
	return spatial.XY{X: theta[0], Y: theta[1]}, theta[2], rms, true
}

// initialScale is the least-squares range scale for a fixed position
func initialScale(anchors []anchor, p spatial.XY) float64 {
	var num, den, sumD float64
	for _, a := range anchors {
		d := spatial.Dist(p, a.xy)
		num += a.weight * d * a.rho
		den += a.weight * a.rho * a.rho
		sumD += d
	}
	if den > 0 && num > 0 {
		return num / den
	}
	return math.Max(sumD/float64(len(anchors)), 1)
}

// centroidConfidence grows with the number of anchors but stays below any refined estimate
func centroidConfidence(anchors int) float64 {
	if anchors <= 1 {
		return MinConfidence
	}
	return 0.3 * (1 - 1/float64(anchors))
}

// refinedConfidence is in [0.4, 1]: better fit and more anchors raise it, clamping lowers it
func refinedConfidence(anchors []anchor, scale, rms float64, clamped bool) float64 {
	var sumW, sumWRho float64
	for _, a := range anchors {
		sumW += a.weight
		sumWRho += a.weight * a.rho
	}
	meanRange := scale * sumWRho / sumW

	quality := 0.0
	if meanRange > 0 {
		quality = 1 / (1 + rms/meanRange)
	}
	coverage := math.Min(1, float64(len(anchors))/6)

	conf := 0.5 + 0.5*quality*coverage
	if clamped {
		conf *= 0.8
	}
	return conf
}
