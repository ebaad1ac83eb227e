package detection

import (
	"context"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// Cluster is one logical transmitter and its derived metrics. It is recomputed from the
// store on demand and never persisted.
type Cluster struct {
	Key        Key
	Sightings  []models.Sighting // timestamp ascending
	SplitCount int               // number of parts the identity was split into

	Estimate  Estimate
	Nearest   *Match // nil when the registry is empty
	Features  Features
	Breakdown models.ScoreBreakdown
	Score     float64

	FirstSeen int64
	LastSeen  int64
}

// Engine wires clusterer, estimator, matcher and scorer together
type Engine struct {
	cfg       Config
	clusterer *Clusterer
	estimator *Estimator
	matcher   *Matcher
	scorer    *Scorer
}

// NewEngine creates a detection engine over the given store and registry
func NewEngine(store SightingStore, registry TowerRegistry, cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		clusterer: NewClusterer(store, cfg.SplitRadiusMeters),
		estimator: NewEstimator(cfg),
		matcher:   NewMatcher(registry),
		scorer:    NewScorer(cfg),
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config { return e.cfg }

// Clusterer returns the identity clusterer
func (e *Engine) Clusterer() *Clusterer { return e.clusterer }

// Estimator returns the multilateration estimator
func (e *Engine) Estimator() *Estimator { return e.estimator }

// Matcher returns the known-tower matcher
func (e *Engine) Matcher() *Matcher { return e.matcher }

// Scorer returns the suspiciousness scorer
func (e *Engine) Scorer() *Scorer { return e.scorer }

// Score returns the suspiciousness of a cluster from its features
func (e *Engine) Score(c *Cluster) float64 {
	return e.scorer.Score(c.Features)
}

// EvaluateIdentity loads the sightings of id and evaluates every cluster it splits into
func (e *Engine) EvaluateIdentity(ctx context.Context, id Identity) ([]*Cluster, error) {
	sightings, err := e.clusterer.ClusterFor(ctx, id)
	if err != nil {
		return nil, err
	}
	towers, err := e.matcher.Towers(ctx)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(id, sightings, towers)
}

// Evaluate computes clusters for one identity from its time-ordered sightings and the
// registry contents. It performs no I/O.
func (e *Engine) Evaluate(id Identity, sightings []models.Sighting, towers []models.KnownTower) ([]*Cluster, error) {
	if len(sightings) == 0 {
		return nil, ErrInvalidInput
	}

	parts := e.clusterer.Partition(sightings)
	distinct := DistinctParams(sightings)
	known := IsKnownIdentity(towers, id)

	clusters := make([]*Cluster, 0, len(parts))
	for i, members := range parts {
		est, err := e.estimator.EstimatePosition(members)
		if err != nil {
			return nil, err
		}

		c := &Cluster{
			Key:        Key{Identity: id, Part: i},
			Sightings:  members,
			SplitCount: len(parts),
			Estimate:   est,
			Nearest:    ClosestOf(towers, est.Lat, est.Lon),
			FirstSeen:  members[0].Timestamp,
			LastSeen:   members[0].Timestamp,
		}
		for _, s := range members {
			if s.Timestamp < c.FirstSeen {
				c.FirstSeen = s.Timestamp
			}
			if s.Timestamp > c.LastSeen {
				c.LastSeen = s.Timestamp
			}
		}

		c.Features = Features{
			DistinctParams: distinct,
			KnownIdentity:  known,
			PowerExcessDB:  e.scorer.PowerExcess(members, est.Lat, est.Lon),
		}
		if c.Nearest != nil {
			c.Features.HasNearestTower = true
			c.Features.NearestTowerM = c.Nearest.DistanceM
		}
		c.Breakdown = e.scorer.Breakdown(c.Features)
		c.Score = e.scorer.Score(c.Features)

		clusters = append(clusters, c)
	}
	return clusters, nil
}
