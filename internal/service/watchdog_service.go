package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
	"github.com/jengzang/watchdog-backend-go/internal/metrics"
	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/repository"
	"github.com/jengzang/watchdog-backend-go/internal/spatial"
)

// WatchdogService is the query facade over the detection engine. Apart from the ingestion
// and administrative entry points it never mutates the store.
type WatchdogService struct {
	sightings *repository.SightingRepository
	towers    *repository.KnownTowerRepository
	runs      *repository.RecomputeRunRepository

	engine *detection.Engine
	cache  *clusterCache
	logger zerolog.Logger
}

// NewWatchdogService creates a new watchdog service
func NewWatchdogService(
	sightings *repository.SightingRepository,
	towers *repository.KnownTowerRepository,
	runs *repository.RecomputeRunRepository,
	cfg detection.Config,
) *WatchdogService {
	return &WatchdogService{
		sightings: sightings,
		towers:    towers,
		runs:      runs,
		engine:    detection.NewEngine(sightings, towers, cfg),
		cache:     newClusterCache(),
		logger:    logging.With("watchdog"),
	}
}

// Engine returns the underlying detection engine
func (s *WatchdogService) Engine() *detection.Engine {
	return s.engine
}

// stampOf reads the current store stamp of one identity
func (s *WatchdogService) stampOf(ctx context.Context, id detection.Identity) (storeStamp, error) {
	sightings, err := s.sightings.IdentityStamp(ctx, id)
	if err != nil {
		return storeStamp{}, detection.WrapStorageError("identity_stamp", err)
	}
	towers, err := s.towers.Version(ctx)
	if err != nil {
		return storeStamp{}, detection.WrapStorageError("registry_version", err)
	}
	return storeStamp{sightings: sightings, towers: towers}, nil
}

// clusters returns the evaluated clusters of one identity, from cache when the store has
// not changed since they were computed
func (s *WatchdogService) clusters(ctx context.Context, id detection.Identity) ([]*detection.Cluster, error) {
	stamp, err := s.stampOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.clustersAt(ctx, id, stamp)
}

// clustersAt serves id from cache when the entry matches stamp and evaluates it otherwise
func (s *WatchdogService) clustersAt(ctx context.Context, id detection.Identity, stamp storeStamp) ([]*detection.Cluster, error) {
	cached, ok, stale := s.cache.get(id, stamp)
	switch {
	case ok:
		metrics.RecordCacheHit()
		return cached, nil
	case stale:
		metrics.RecordCacheStale()
	default:
		metrics.RecordCacheMiss()
	}
	return s.evaluate(ctx, id, stamp)
}

// evaluate computes the clusters of id and caches them under stamp. Concurrent callers
// with the same stamp share one evaluation.
func (s *WatchdogService) evaluate(ctx context.Context, id detection.Identity, stamp storeStamp) ([]*detection.Cluster, error) {
	v, err, _ := s.cache.flight.Do(flightKey(id, stamp), func() (interface{}, error) {
		// Joined callers share this result; one of them going away must not fail the others
		ctx := context.WithoutCancel(ctx)

		start := time.Now()
		clusters, err := s.engine.EvaluateIdentity(ctx, id)
		if err != nil {
			return nil, err
		}
		metrics.RecordEvaluation(time.Since(start))

		s.cache.put(id, stamp, clusters)
		return clusters, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*detection.Cluster), nil
}

// allClusters evaluates every identity in the store, in identity order
func (s *WatchdogService) allClusters(ctx context.Context) ([]*detection.Cluster, error) {
	ids, err := s.engine.Clusterer().AllClusterIdentities(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stamps, err := s.sightings.IdentityStamps(ctx)
	if err != nil {
		return nil, detection.WrapStorageError("identity_stamps", err)
	}
	towers, err := s.towers.Version(ctx)
	if err != nil {
		return nil, detection.WrapStorageError("registry_version", err)
	}

	var all []*detection.Cluster
	for _, id := range ids {
		stamp := storeStamp{sightings: stamps[id], towers: towers}
		clusters, err := s.clustersAt(ctx, id, stamp)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", id, err)
		}
		all = append(all, clusters...)
	}
	return all, nil
}

// ListClusters returns one summary per transmitter. An empty store yields an empty slice.
func (s *WatchdogService) ListClusters(ctx context.Context) ([]models.EnodebSummary, error) {
	all, err := s.allClusters(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.EnodebSummary, 0, len(all))
	for _, c := range all {
		summaries = append(summaries, summarize(c))
	}
	return summaries, nil
}

// Cluster returns the cluster addressed by key
func (s *WatchdogService) Cluster(ctx context.Context, key detection.Key) (*detection.Cluster, error) {
	clusters, err := s.clusters(ctx, key.Identity)
	if err != nil {
		return nil, err
	}
	if key.Part < 0 || key.Part >= len(clusters) {
		return nil, fmt.Errorf("%w: cluster %s", detection.ErrNotFound, key)
	}
	return clusters[key.Part], nil
}

// ClusterDetail returns the detail view of one transmitter
func (s *WatchdogService) ClusterDetail(ctx context.Context, rawKey string, filter models.FieldFilter) (*models.EnodebDetail, error) {
	for _, name := range filter.Only {
		if !models.IsSightingField(name) {
			return nil, fmt.Errorf("%w: unknown field %q", detection.ErrInvalidInput, name)
		}
	}

	key, err := detection.ParseKey(rawKey)
	if err != nil {
		return nil, err
	}

	c, err := s.Cluster(ctx, key)
	if err != nil {
		return nil, err
	}

	stats, err := s.identityStats(ctx, key.Identity)
	if err != nil {
		return nil, err
	}

	similar, err := s.SimilarClusters(ctx, c)
	if err != nil {
		return nil, err
	}

	centroid := s.Centroid(c.Sightings)
	detail := &models.EnodebDetail{
		EnodebSummary: summarize(c),
		Breakdown:     c.Breakdown,
		IdentityStats: stats,
		Centroid:      models.Position{Lat: centroid.Lat, Lon: centroid.Lon},
		Similar:       similar,
		ShowColumns:   filter.VisibleFields(),
		Params:        make([]map[string]string, 0, len(c.Sightings)),
	}
	for _, sg := range c.Sightings {
		detail.Params = append(detail.Params, sg.Params(filter))
	}
	return detail, nil
}

// identityStats reads power and time bounds over every sighting of id from the store
func (s *WatchdogService) identityStats(ctx context.Context, id detection.Identity) (models.IdentityStats, error) {
	var stats models.IdentityStats

	minPower, ok, err := s.sightings.MinColumn(ctx, id, detection.ColumnTxPower)
	if err != nil {
		return stats, detection.WrapStorageError("min_column", err)
	}
	if !ok {
		return stats, fmt.Errorf("%w: identity %s", detection.ErrNotFound, id)
	}
	maxPower, _, err := s.sightings.MaxColumn(ctx, id, detection.ColumnTxPower)
	if err != nil {
		return stats, detection.WrapStorageError("max_column", err)
	}
	first, _, err := s.sightings.MinColumn(ctx, id, detection.ColumnTimestamp)
	if err != nil {
		return stats, detection.WrapStorageError("min_column", err)
	}
	last, _, err := s.sightings.MaxColumn(ctx, id, detection.ColumnTimestamp)
	if err != nil {
		return stats, detection.WrapStorageError("max_column", err)
	}

	stats.MinPower = minPower
	stats.MaxPower = maxPower
	stats.FirstSeen = int64(first)
	stats.LastSeen = int64(last)
	return stats, nil
}

// SimilarClusters returns the clusters near ref's estimate, or carrying the same eNodeB id
// under a look-alike PLMN. ref itself is never included. Nearest first.
func (s *WatchdogService) SimilarClusters(ctx context.Context, ref *detection.Cluster) ([]models.EnodebSummary, error) {
	all, err := s.allClusters(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.engine.Config()
	refPLMN := ref.Key.Identity.PLMN()

	type candidate struct {
		cluster  *detection.Cluster
		distance float64
	}
	var candidates []candidate
	for _, c := range all {
		if c.Key == ref.Key {
			continue
		}
		d := spatial.HaversineDistance(ref.Estimate.Lat, ref.Estimate.Lon, c.Estimate.Lat, c.Estimate.Lon)
		near := d <= cfg.SimilarRadiusMeters
		lookalike := c.Key.Identity.EnodebID == ref.Key.Identity.EnodebID &&
			levenshtein.ComputeDistance(refPLMN, c.Key.Identity.PLMN()) <= cfg.MaxPLMNEditDistance
		if near || lookalike {
			candidates = append(candidates, candidate{cluster: c, distance: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].cluster.Key.String() < candidates[j].cluster.Key.String()
	})

	similar := make([]models.EnodebSummary, 0, len(candidates))
	for _, cand := range candidates {
		similar = append(similar, summarize(cand.cluster))
	}
	return similar, nil
}

// Centroid is the unweighted mean of the observer positions. It is used for display
// grouping only; the localization result is the cluster estimate.
func (s *WatchdogService) Centroid(sightings []models.Sighting) spatial.Point {
	points := make([]spatial.Point, len(sightings))
	for i, sg := range sightings {
		points[i] = spatial.Point{Lat: sg.Lat, Lon: sg.Lon}
	}
	return spatial.Centroid(points)
}

// MapPoints exports the estimated position of every transmitter. An empty result is valid.
func (s *WatchdogService) MapPoints(ctx context.Context) ([]models.MapPoint, error) {
	all, err := s.allClusters(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]models.MapPoint, 0, len(all))
	for _, c := range all {
		points = append(points, models.MapPoint{
			Lat:      c.Estimate.Lat,
			Lon:      c.Estimate.Lon,
			Key:      c.Key.String(),
			EnodebID: c.Key.Identity.EnodebID,
		})
	}
	return points, nil
}

// SightingDetail returns one sighting with the sightings sharing its identity and cell id,
// and the position estimated from them
func (s *WatchdogService) SightingDetail(ctx context.Context, id int64) (*models.SightingDetail, error) {
	sg, err := s.sightings.GetSighting(ctx, id)
	if err != nil {
		return nil, detection.WrapStorageError("get_sighting", err)
	}
	if sg == nil {
		return nil, fmt.Errorf("%w: sighting %d", detection.ErrNotFound, id)
	}

	similar, err := s.sightings.SimilarSightings(ctx, *sg)
	if err != nil {
		return nil, detection.WrapStorageError("similar_sightings", err)
	}
	if len(similar) == 0 {
		similar = []models.Sighting{*sg}
	}

	est, err := s.engine.Estimator().EstimatePosition(similar)
	if err != nil {
		return nil, err
	}
	centroid := s.Centroid(similar)

	return &models.SightingDetail{
		Sighting:   *sg,
		Similar:    similar,
		NumTowers:  len(similar),
		Estimate:   models.Position{Lat: est.Lat, Lon: est.Lon},
		Confidence: est.Confidence,
		Centroid:   models.Position{Lat: centroid.Lat, Lon: centroid.Lon},
	}, nil
}

// IngestSighting appends a sighting and invalidates the clusters of its identity
func (s *WatchdogService) IngestSighting(ctx context.Context, sg *models.Sighting) error {
	if !spatial.ValidCoordinate(sg.Lat, sg.Lon) {
		return fmt.Errorf("%w: observer position %f,%f", detection.ErrInvalidInput, sg.Lat, sg.Lon)
	}

	if err := s.sightings.InsertSighting(ctx, sg); err != nil {
		return detection.WrapStorageError("insert_sighting", err)
	}

	// The new stamp already hides the old entry; dropping it frees the memory early
	s.cache.invalidate(detection.IdentityOf(*sg))
	metrics.RecordIngest()
	return nil
}

// MapView pairs the transmitter estimates with the known towers so both can be drawn together
func (s *WatchdogService) MapView(ctx context.Context) (*models.MapView, error) {
	points, err := s.MapPoints(ctx)
	if err != nil {
		return nil, err
	}
	towers, err := s.ListKnownTowers(ctx)
	if err != nil {
		return nil, err
	}
	return &models.MapView{Points: points, KnownTowers: towers}, nil
}

// ListKnownTowers returns the registry in insertion order
func (s *WatchdogService) ListKnownTowers(ctx context.Context) ([]models.KnownTower, error) {
	towers, err := s.engine.Matcher().Towers(ctx)
	if err != nil {
		return nil, err
	}
	if towers == nil {
		towers = []models.KnownTower{}
	}
	return towers, nil
}

// AddKnownTower registers a legitimate tower. Every cluster depends on the registry, so
// every cached entry is dropped.
func (s *WatchdogService) AddKnownTower(ctx context.Context, req models.KnownTowerRequest) (*models.KnownTower, error) {
	if req.Lat == nil || req.Lon == nil {
		return nil, fmt.Errorf("%w: tower position is required", detection.ErrInvalidInput)
	}
	if !spatial.ValidCoordinate(*req.Lat, *req.Lon) {
		return nil, fmt.Errorf("%w: tower position %f,%f", detection.ErrInvalidInput, *req.Lat, *req.Lon)
	}

	tower := &models.KnownTower{
		MCC:      req.MCC,
		MNC:      req.MNC,
		TAC:      req.TAC,
		EnodebID: req.EnodebID,
		Name:     req.Name,
		Lat:      *req.Lat,
		Lon:      *req.Lon,
	}
	if err := s.engine.Matcher().Register(ctx, tower); err != nil {
		return nil, err
	}

	s.cache.invalidateAll()
	s.logger.Info().Int64("id", tower.ID).Str("name", tower.Name).Msg("Known tower added")
	return tower, nil
}

// RecomputeAll drops every cached cluster and re-evaluates the whole store. It is
// idempotent; each call is recorded as a recompute run.
func (s *WatchdogService) RecomputeAll(ctx context.Context, triggeredBy string) (*models.RecomputeRun, error) {
	run := &models.RecomputeRun{TriggeredBy: triggeredBy}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, detection.WrapStorageError("create_recompute_run", err)
	}

	start := time.Now()
	s.cache.invalidateAll()

	all, evalErr := s.allClusters(ctx)
	if evalErr == nil {
		run.Sightings, evalErr = s.countSightings(ctx)
	}

	run.DurationMS = time.Since(start).Milliseconds()
	if evalErr != nil {
		run.Status = models.RecomputeStatusFailed
		run.ErrorMessage = evalErr.Error()
	} else {
		run.Status = models.RecomputeStatusCompleted
		run.Clusters = len(all)
	}

	// The run must be closed even when the request was cancelled mid-way
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		return nil, detection.WrapStorageError("finish_recompute_run", errors.Join(evalErr, err))
	}
	metrics.RecordRecompute(run.Status, run.Clusters, time.Since(start))

	if evalErr != nil {
		s.logger.Error().Err(evalErr).Int64("run", run.ID).Msg("Recompute failed")
		return run, evalErr
	}

	s.logger.Info().
		Int64("run", run.ID).
		Str("clusters", humanize.Comma(int64(run.Clusters))).
		Str("sightings", humanize.Comma(int64(run.Sightings))).
		Int64("duration_ms", run.DurationMS).
		Msg("Recompute completed")
	return run, nil
}

func (s *WatchdogService) countSightings(ctx context.Context) (int, error) {
	n, err := s.sightings.CountSightings(ctx)
	if err != nil {
		return 0, detection.WrapStorageError("count_sightings", err)
	}
	return n, nil
}

// GetRecomputeRun returns a recorded recompute run
func (s *WatchdogService) GetRecomputeRun(ctx context.Context, id int64) (*models.RecomputeRun, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, detection.WrapStorageError("get_recompute_run", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: recompute run %d", detection.ErrNotFound, id)
	}
	return run, nil
}

// summarize builds the listing row of a cluster
func summarize(c *detection.Cluster) models.EnodebSummary {
	cells := make(map[int64]struct{})
	for _, sg := range c.Sightings {
		cells[sg.CID] = struct{}{}
	}

	summary := models.EnodebSummary{
		Key:            c.Key.String(),
		PLMN:           c.Key.Identity.PLMN(),
		EnodebID:       c.Key.Identity.EnodebID,
		Part:           c.Key.Part,
		Lat:            c.Estimate.Lat,
		Lon:            c.Estimate.Lon,
		Confidence:     c.Estimate.Confidence,
		Degenerate:     c.Estimate.Degenerate,
		UniqueCells:    len(cells),
		Sightings:      len(c.Sightings),
		SplitCount:     c.SplitCount,
		Suspiciousness: c.Score,
		FirstSeen:      c.FirstSeen,
		LastSeen:       c.LastSeen,
		LastSeenText:   humanize.Time(time.Unix(c.LastSeen, 0)),
	}
	if c.Nearest != nil {
		summary.ClosestTower = &models.ClosestTower{
			Tower:     c.Nearest.Tower,
			DistanceM: c.Nearest.DistanceM,
			Distance:  humanize.SIWithDigits(c.Nearest.DistanceM, 1, "m"),
		}
	}
	return summary
}
