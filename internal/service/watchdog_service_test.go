package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/watchdog-backend-go/internal/database"
	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/repository"
)

const (
	keyX = "310_410_7_1001"
	keyY = "310_260_9_2002"
)

func newTestService(t *testing.T) *WatchdogService {
	t.Helper()
	return openService(t, filepath.Join(t.TempDir(), "watchdog.db"))
}

// openService opens its own connection pool on path, the way a second process would
func openService(t *testing.T, path string) *WatchdogService {
	t.Helper()
	db, err := database.Open(database.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewWatchdogService(
		repository.NewSightingRepository(db),
		repository.NewKnownTowerRepository(db),
		repository.NewRecomputeRunRepository(db),
		detection.DefaultConfig(),
	)
}

func sighting(mnc, tac int, enodeb int64, cid int64, lat, lon float64, ts int64) *models.Sighting {
	return &models.Sighting{
		MCC:       310,
		MNC:       mnc,
		TAC:       tac,
		EnodebID:  enodeb,
		SectorID:  1,
		CID:       cid,
		PhyCellID: 42,
		EARFCN:    5230,
		Lat:       lat,
		Lon:       lon,
		TxPower:   -60,
		RawSIB1:   "deadbeef",
		Timestamp: ts,
	}
}

func floatPtr(v float64) *float64 { return &v }

// seedScenario stores identity X on a right triangle around a registered tower and
// identity Y at one spot 50 km away with three parameter sets
func seedScenario(t *testing.T, svc *WatchdogService) {
	t.Helper()
	ctx := context.Background()

	for _, s := range []*models.Sighting{
		sighting(410, 7, 1001, 100, 40.0, -105.0, 1000),
		sighting(410, 7, 1001, 100, 40.01, -105.0, 1000),
		sighting(410, 7, 1001, 100, 40.0, -104.99, 1000),
		sighting(260, 9, 2002, 1, 40.455, -104.995, 2000),
		sighting(260, 9, 2002, 2, 40.455, -104.995, 2001),
		sighting(260, 9, 2002, 3, 40.455, -104.995, 2002),
	} {
		require.NoError(t, svc.IngestSighting(ctx, s))
	}

	_, err := svc.AddKnownTower(ctx, models.KnownTowerRequest{
		MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001,
		Name: "downtown",
		Lat:  floatPtr(40.005),
		Lon:  floatPtr(-104.995),
	})
	require.NoError(t, err)
}

func TestWatchdogService_EmptyStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)

	clusters, err := svc.ListClusters(ctx)
	require.NoError(t, err)
	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)

	points, err := svc.MapPoints(ctx)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	view, err := svc.MapView(ctx)
	require.NoError(t, err)
	assert.NotNil(t, view.Points)
	assert.NotNil(t, view.KnownTowers)

	towers, err := svc.ListKnownTowers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, towers)
	assert.Empty(t, towers)

	_, err = svc.ClusterDetail(ctx, keyX, models.FieldFilter{})
	assert.ErrorIs(t, err, detection.ErrNotFound)
}

func TestWatchdogService_ListClusters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	clusters, err := svc.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	y, x := clusters[0], clusters[1]
	assert.Equal(t, keyY, y.Key)
	assert.Equal(t, keyX, x.Key)

	assert.InDelta(t, 40.005, x.Lat, 1e-4)
	assert.InDelta(t, -104.995, x.Lon, 1e-4)
	require.NotNil(t, x.ClosestTower)
	assert.Equal(t, "downtown", x.ClosestTower.Tower.Name)
	assert.Less(t, x.ClosestTower.DistanceM, 10.0)
	assert.Equal(t, 1, x.UniqueCells)
	assert.Equal(t, 3, x.Sightings)
	assert.Less(t, x.Suspiciousness, 1.0)

	assert.Equal(t, 3, y.UniqueCells)
	assert.InDelta(t, 67.5, y.Suspiciousness, 1e-9)
	assert.Greater(t, y.Suspiciousness, x.Suspiciousness)
	assert.Equal(t, int64(2000), y.FirstSeen)
	assert.Equal(t, int64(2002), y.LastSeen)
	assert.NotEmpty(t, y.LastSeenText)
	assert.Contains(t, y.ClosestTower.Distance, "km")

	points, err := svc.MapPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, keyY, points[0].Key)
	assert.Equal(t, int64(2002), points[0].EnodebID)

	view, err := svc.MapView(ctx)
	require.NoError(t, err)
	assert.Equal(t, points, view.Points)
	require.Len(t, view.KnownTowers, 1)
	assert.Equal(t, "downtown", view.KnownTowers[0].Name)
}

func TestWatchdogService_ClusterDetail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	detail, err := svc.ClusterDetail(ctx, keyY, models.FieldFilter{})
	require.NoError(t, err)

	assert.Equal(t, keyY, detail.Key)
	assert.Equal(t, -60.0, detail.IdentityStats.MinPower)
	assert.Equal(t, -60.0, detail.IdentityStats.MaxPower)
	assert.Equal(t, int64(2000), detail.IdentityStats.FirstSeen)
	assert.Equal(t, int64(2002), detail.IdentityStats.LastSeen)
	assert.InDelta(t, 40.455, detail.Centroid.Lat, 1e-9)
	assert.Equal(t, 40.0, detail.Breakdown.Distance)
	assert.Equal(t, 12.5, detail.Breakdown.Parameters)

	assert.NotContains(t, detail.ShowColumns, "lat")
	assert.NotContains(t, detail.ShowColumns, "raw_sib1")
	assert.Contains(t, detail.ShowColumns, "cid")
	require.Len(t, detail.Params, 3)
	assert.NotContains(t, detail.Params[0], "raw_sib1")
	assert.Equal(t, "1", detail.Params[0]["cid"])

	sensitive, err := svc.ClusterDetail(ctx, keyY, models.FieldFilter{ShowSensitive: true, Only: []string{"raw_sib1", "cid"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cid", "raw_sib1"}, sensitive.ShowColumns)
	assert.Equal(t, map[string]string{"cid": "1", "raw_sib1": "deadbeef"}, sensitive.Params[0])
}

func TestWatchdogService_ClusterDetailErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	_, err := svc.ClusterDetail(ctx, "not-a-key", models.FieldFilter{})
	assert.ErrorIs(t, err, detection.ErrInvalidInput)

	_, err = svc.ClusterDetail(ctx, keyX, models.FieldFilter{Only: []string{"password"}})
	assert.ErrorIs(t, err, detection.ErrInvalidInput)

	_, err = svc.ClusterDetail(ctx, keyX+"~1", models.FieldFilter{})
	assert.ErrorIs(t, err, detection.ErrNotFound)

	_, err = svc.ClusterDetail(ctx, "1_2_3_4", models.FieldFilter{})
	assert.ErrorIs(t, err, detection.ErrNotFound)
}

func TestWatchdogService_SimilarClusters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	// Same eNodeB id under a look-alike PLMN, far away
	require.NoError(t, svc.IngestSighting(ctx, sighting(411, 7, 1001, 5, 41.0, -106.0, 3000)))
	// Different identity right next to X
	require.NoError(t, svc.IngestSighting(ctx, sighting(999, 1, 5, 5, 40.006, -104.995, 3000)))

	x, err := svc.Cluster(ctx, detection.Key{Identity: detection.Identity{MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001}})
	require.NoError(t, err)

	similar, err := svc.SimilarClusters(ctx, x)
	require.NoError(t, err)

	var keys []string
	for _, s := range similar {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"310_999_1_5", "310_411_7_1001"}, keys)
}

func TestWatchdogService_IngestInvalidatesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	before, err := svc.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	idX := detection.Identity{MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001}
	stamp, err := svc.stampOf(ctx, idX)
	require.NoError(t, err)
	_, cached, _ := svc.cache.get(idX, stamp)
	require.True(t, cached)

	spoof := sighting(410, 7, 1001, 999, 40.0, -105.0, 5000)
	require.NoError(t, svc.IngestSighting(ctx, spoof))

	after, err := svc.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, after.Sightings)
	assert.Equal(t, 2, after.UniqueCells)
	assert.Greater(t, after.Suspiciousness, before.Suspiciousness)
	assert.Equal(t, int64(5000), after.LastSeen)
}

func TestWatchdogService_AddKnownTowerInvalidatesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.IngestSighting(ctx, sighting(410, 7, 1001, 100, 40.0, -105.0, 1000)))

	before, err := svc.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Nil(t, before[0].ClosestTower)

	tower, err := svc.AddKnownTower(ctx, models.KnownTowerRequest{Name: "here", Lat: floatPtr(40.0), Lon: floatPtr(-105.0)})
	require.NoError(t, err)
	assert.NotZero(t, tower.ID)

	after, err := svc.ListClusters(ctx)
	require.NoError(t, err)
	require.NotNil(t, after[0].ClosestTower)
	assert.Equal(t, "here", after[0].ClosestTower.Tower.Name)
	assert.Less(t, after[0].Suspiciousness, before[0].Suspiciousness)
}

func TestWatchdogService_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddKnownTower(ctx, models.KnownTowerRequest{Lat: floatPtr(95), Lon: floatPtr(0)})
	assert.ErrorIs(t, err, detection.ErrInvalidInput)
	_, err = svc.AddKnownTower(ctx, models.KnownTowerRequest{Lat: floatPtr(1)})
	assert.ErrorIs(t, err, detection.ErrInvalidInput)

	err = svc.IngestSighting(ctx, sighting(410, 7, 1, 1, 0, 200, 1))
	assert.ErrorIs(t, err, detection.ErrInvalidInput)
}

func TestWatchdogService_SightingDetail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	detail, err := svc.SightingDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Sighting.ID)
	assert.Equal(t, 3, detail.NumTowers)
	assert.InDelta(t, 40.005, detail.Estimate.Lat, 1e-4)
	assert.InDelta(t, -104.995, detail.Estimate.Lon, 1e-4)
	assert.InDelta(t, 40.00333, detail.Centroid.Lat, 1e-4)

	// Y sightings each carry their own cell id
	single, err := svc.SightingDetail(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, single.NumTowers)
	assert.Equal(t, 0.0, single.Confidence)

	_, err = svc.SightingDetail(ctx, 404)
	assert.ErrorIs(t, err, detection.ErrNotFound)
}

func TestWatchdogService_RecomputeAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	first, err := svc.RecomputeAll(ctx, "tester")
	require.NoError(t, err)
	assert.Equal(t, models.RecomputeStatusCompleted, first.Status)
	assert.Equal(t, 2, first.Clusters)
	assert.Equal(t, 6, first.Sightings)
	assert.NotNil(t, first.CompletedAt)

	listed, err := svc.ListClusters(ctx)
	require.NoError(t, err)

	second, err := svc.RecomputeAll(ctx, "tester")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Clusters, second.Clusters)

	relisted, err := svc.ListClusters(ctx)
	require.NoError(t, err)
	assert.Equal(t, listed, relisted)

	stored, err := svc.GetRecomputeRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "tester", stored.TriggeredBy)
	assert.Equal(t, models.RecomputeStatusCompleted, stored.Status)

	_, err = svc.GetRecomputeRun(ctx, 9999)
	assert.ErrorIs(t, err, detection.ErrNotFound)
}

func TestWatchdogService_ConcurrentIngestAndQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	seedScenario(t, svc)

	const writes = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			s := sighting(410, 7, 1001, int64(200+i), 40.0+float64(i)/10000, -105.0, int64(6000+i))
			assert.NoError(t, svc.IngestSighting(ctx, s))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			_, err := svc.ListClusters(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	detail, err := svc.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3+writes, detail.Sightings)
	assert.Equal(t, int64(6000+writes-1), detail.LastSeen)
	assert.Equal(t, 1+writes, detail.UniqueCells, fmt.Sprintf("%+v", detail.EnodebSummary))
}

func TestWatchdogService_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	server := openService(t, path)
	ingester := openService(t, path)

	const (
		writers   = 8
		perWriter = 25
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		svc := server
		if w%2 == 1 {
			svc = ingester
		}
		wg.Add(1)
		go func(w int, svc *WatchdogService) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s := sighting(410, 7, 1001, int64(w*perWriter+i), 40.0+float64(i)/10000, -105.0, int64(1000+i))
				assert.NoError(t, svc.IngestSighting(ctx, s))
			}
		}(w, svc)
	}
	wg.Wait()

	detail, err := server.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, detail.Sightings)
	assert.Equal(t, writers*perWriter, detail.UniqueCells)
}

func TestWatchdogService_SeesWritesFromOtherInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	server := openService(t, path)
	ingester := openService(t, path)

	require.NoError(t, ingester.IngestSighting(ctx, sighting(410, 7, 1001, 100, 40.0, -105.0, 1000)))

	before, err := server.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, before.Sightings)
	require.Nil(t, before.ClosestTower)

	// The server holds a cached entry; the other instance writes behind its back
	require.NoError(t, ingester.IngestSighting(ctx, sighting(410, 7, 1001, 101, 40.01, -105.0, 2000)))

	after, err := server.ClusterDetail(ctx, keyX, models.FieldFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, after.Sightings)
	assert.Equal(t, 2, after.UniqueCells)
	assert.Greater(t, after.Suspiciousness, before.Suspiciousness)
	assert.Equal(t, int64(2000), after.LastSeen)

	_, err = ingester.AddKnownTower(ctx, models.KnownTowerRequest{
		MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001,
		Name: "next door",
		Lat:  floatPtr(40.005),
		Lon:  floatPtr(-105.0),
	})
	require.NoError(t, err)

	listed, err := server.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].ClosestTower)
	assert.Equal(t, "next door", listed[0].ClosestTower.Tower.Name)
	assert.Less(t, listed[0].Suspiciousness, after.Suspiciousness)

	points, err := server.MapPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
}

func TestWatchdogService_SharedEvaluationOutlivesCaller(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	seedScenario(t, svc)

	idX := detection.Identity{MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001}
	stamp, err := svc.stampOf(context.Background(), idX)
	require.NoError(t, err)

	// The caller that started the evaluation is gone; anyone joined to it still gets a result
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clusters, err := svc.evaluate(ctx, idX, stamp)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	_, cached, _ := svc.cache.get(idX, stamp)
	assert.True(t, cached)
}
