package detection

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/spatial"
)

// Features are the inputs of the suspiciousness score
type Features struct {
	// NearestTowerM is the distance to the nearest known tower; HasNearestTower is false when
	// the registry is empty
	NearestTowerM   float64
	HasNearestTower bool

	// DistinctParams is the number of distinct secondary parameter combinations
	DistinctParams int

	// KnownIdentity is true when the registry lists this identity
	KnownIdentity bool

	// PowerExcessDB is the largest amount by which an observed reading exceeds what the
	// path-loss model predicts at that observer's distance from the estimate
	PowerExcessDB float64
}

// Scorer turns features into a 0..MaxScore suspiciousness value
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer from the detection config
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is a pure function of f. Every term is non-decreasing in its own input.
func (s *Scorer) Score(f Features) float64 {
	b := s.Breakdown(f)
	return b.Distance + b.Parameters + b.UnknownIdentity + b.PowerAnomaly
}

// Breakdown returns the contribution of each term
func (s *Scorer) Breakdown(f Features) models.ScoreBreakdown {
	var b models.ScoreBreakdown

	// Far from every legitimate tower, saturating at the configured radius. No registry at
	// all counts as saturated.
	distanceRatio := 1.0
	if f.HasNearestTower {
		distanceRatio = math.Min(math.Max(f.NearestTowerM, 0), s.cfg.SaturationRadiusMeters) / s.cfg.SaturationRadiusMeters
	}
	b.Distance = s.cfg.DistanceWeight * distanceRatio

	// Several parameter sets behind one identity look like spoofing
	extra := math.Max(float64(f.DistinctParams-1), 0)
	b.Parameters = s.cfg.ParameterWeight * math.Min(extra, float64(s.cfg.ParameterSaturation)) / float64(s.cfg.ParameterSaturation)

	if !f.KnownIdentity {
		b.UnknownIdentity = s.cfg.UnknownIdentityWeight
	}

	// Implausibly strong signal for the distance suggests a nearby device
	excess := math.Max(f.PowerExcessDB-s.cfg.PowerToleranceDB, 0)
	b.PowerAnomaly = s.cfg.PowerWeight * math.Min(excess, s.cfg.PowerSaturationDB) / s.cfg.PowerSaturationDB

	return b
}

// ExpectedPower is the received power the log-distance model predicts at distanceM
func (s *Scorer) ExpectedPower(distanceM float64) float64 {
	// Readings taken practically on top of the transmitter are not informative
	d := math.Max(distanceM, 10)
	return s.cfg.ReferencePowerDBm - 10*s.cfg.PathLossExponent*math.Log10(d/1000)
}

// PowerExcess returns the largest observed-minus-expected power over the sightings for a
// transmitter at lat/lon
func (s *Scorer) PowerExcess(sightings []models.Sighting, lat, lon float64) float64 {
	var maxExcess float64
	for _, sg := range sightings {
		d := spatial.HaversineDistance(sg.Lat, sg.Lon, lat, lon)
		if excess := sg.TxPower - s.ExpectedPower(d); excess > maxExcess {
			maxExcess = excess
		}
	}
	return maxExcess
}

// ParamFingerprint hashes the secondary parameter combination of a sighting
func ParamFingerprint(sg models.Sighting) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(sg.SectorID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(sg.CID))
	binary.LittleEndian.PutUint64(buf[16:], uint64(sg.PhyCellID))
	binary.LittleEndian.PutUint64(buf[24:], uint64(sg.EARFCN))
	return xxh3.Hash(buf[:])
}

// DistinctParams counts distinct secondary parameter combinations
func DistinctParams(sightings []models.Sighting) int {
	seen := make(map[uint64]struct{}, len(sightings))
	for _, sg := range sightings {
		seen[ParamFingerprint(sg)] = struct{}{}
	}
	return len(seen)
}
