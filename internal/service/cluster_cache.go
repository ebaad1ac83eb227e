package service

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/repository"
)

// storeStamp identifies the store state an evaluation of one identity depends on: the
// identity's sightings and the registry version. Both are read from the database, so
// writes made by other processes change it too.
type storeStamp struct {
	sightings repository.IdentityStamp
	towers    int64
}

type cacheEntry struct {
	stamp    storeStamp
	clusters []*detection.Cluster
}

// clusterCache holds evaluated clusters per identity.
//
// An entry is served only while the current store stamp equals the stamp read before the
// entry was computed. The stamp is read before the sightings, so an entry never reflects
// less than its stamp, and any later write makes the stamps differ.
type clusterCache struct {
	mu      sync.RWMutex
	entries map[detection.Identity]cacheEntry

	flight singleflight.Group
}

func newClusterCache() *clusterCache {
	return &clusterCache{
		entries: make(map[detection.Identity]cacheEntry),
	}
}

// get returns the cached clusters of id if they were computed from stamp. stale reports an
// entry that exists but was computed from an older store state.
func (c *clusterCache) get(id detection.Identity, stamp storeStamp) (clusters []*detection.Cluster, ok, stale bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found := c.entries[id]
	if !found {
		return nil, false, false
	}
	if entry.stamp != stamp {
		return nil, false, true
	}
	return entry.clusters, true, false
}

// flightKey names one computation; computations from different store states never join
func flightKey(id detection.Identity, stamp storeStamp) string {
	return fmt.Sprintf("%s@%d.%d.%d", id, stamp.sightings.Count, stamp.sightings.MaxID, stamp.towers)
}

// put stores clusters computed from stamp
func (c *clusterCache) put(id detection.Identity, stamp storeStamp, clusters []*detection.Cluster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{stamp: stamp, clusters: clusters}
}

// invalidate drops the clusters of one identity
func (c *clusterCache) invalidate(id detection.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// invalidateAll drops every cached cluster
func (c *clusterCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[detection.Identity]cacheEntry)
}

// len returns the number of cached identities
func (c *clusterCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
