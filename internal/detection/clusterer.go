package detection

import (
	"context"
	"sort"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/spatial"
)

// Clusterer groups stored sightings into logical transmitters by broadcast identity
type Clusterer struct {
	store       SightingStore
	splitRadius float64
}

// NewClusterer creates a clusterer. splitRadius <= 0 disables position-based splitting.
func NewClusterer(store SightingStore, splitRadius float64) *Clusterer {
	return &Clusterer{store: store, splitRadius: splitRadius}
}

// ClusterFor returns every sighting of id ordered by timestamp ascending
func (c *Clusterer) ClusterFor(ctx context.Context, id Identity) ([]models.Sighting, error) {
	sightings, err := c.store.SightingsByIdentity(ctx, id)
	if err != nil {
		return nil, WrapStorageError("sightings_by_identity", err)
	}
	if len(sightings) == 0 {
		return nil, ErrNotFound
	}

	// The store contract promises this order; re-sorting keeps the guarantee local
	models.SortSightings(sightings)
	return sightings, nil
}

// AllClusterIdentities returns every distinct identity in the store, sorted
func (c *Clusterer) AllClusterIdentities(ctx context.Context) ([]Identity, error) {
	ids, err := c.store.AllDistinctIdentities(ctx)
	if err != nil {
		return nil, WrapStorageError("all_distinct_identities", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids, nil
}

// Partition splits time-ordered sightings of one identity into groups whose observer
// positions are connected by hops no longer than the split radius. Groups are ordered by
// their earliest member and keep the input order internally. With splitting disabled the
// input is returned as a single group.
func (c *Clusterer) Partition(sightings []models.Sighting) [][]models.Sighting {
	if len(sightings) == 0 {
		return nil
	}
	if c.splitRadius <= 0 || len(sightings) == 1 {
		return [][]models.Sighting{sightings}
	}

	uf := newUnionFind(len(sightings))
	for i := 0; i < len(sightings); i++ {
		for j := i + 1; j < len(sightings); j++ {
			d := spatial.HaversineDistance(sightings[i].Lat, sightings[i].Lon, sightings[j].Lat, sightings[j].Lon)
			if d <= c.splitRadius {
				uf.union(i, j)
			}
		}
	}

	// Walking in input order assigns group indices by earliest member
	groupOf := make(map[int]int)
	var groups [][]models.Sighting
	for i, s := range sightings {
		root := uf.find(i)
		g, ok := groupOf[root]
		if !ok {
			g = len(groups)
			groupOf[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], s)
	}
	return groups
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}
