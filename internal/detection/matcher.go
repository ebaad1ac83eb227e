package detection

import (
	"context"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/spatial"
)

// Match is the nearest known tower to a point
type Match struct {
	Tower     models.KnownTower
	DistanceM float64
}

// Matcher finds the nearest legitimate tower to an estimated position
type Matcher struct {
	registry TowerRegistry
}

// NewMatcher creates a matcher over the registry
func NewMatcher(registry TowerRegistry) *Matcher {
	return &Matcher{registry: registry}
}

// Towers loads the registry in insertion order
func (m *Matcher) Towers(ctx context.Context) ([]models.KnownTower, error) {
	towers, err := m.registry.AllKnownTowers(ctx)
	if err != nil {
		return nil, WrapStorageError("all_known_towers", err)
	}
	return towers, nil
}

// ClosestKnownTower returns the nearest known tower to lat/lon, or nil when the registry
// is empty
func (m *Matcher) ClosestKnownTower(ctx context.Context, lat, lon float64) (*Match, error) {
	towers, err := m.Towers(ctx)
	if err != nil {
		return nil, err
	}
	return ClosestOf(towers, lat, lon), nil
}

// ClosestOf picks the nearest tower by great-circle distance. Towers must be in insertion
// order: on equal distance the earlier tower wins.
func ClosestOf(towers []models.KnownTower, lat, lon float64) *Match {
	var best *Match
	for _, t := range towers {
		d := spatial.HaversineDistance(lat, lon, t.Lat, t.Lon)
		if best == nil || d < best.DistanceM {
			best = &Match{Tower: t, DistanceM: d}
		}
	}
	return best
}

// IsKnownIdentity reports whether any registered tower carries identity id
func IsKnownIdentity(towers []models.KnownTower, id Identity) bool {
	for _, t := range towers {
		if t.MCC == id.MCC && t.MNC == id.MNC && t.TAC == id.TAC && t.EnodebID == id.EnodebID {
			return true
		}
	}
	return false
}

// Register adds a tower to the registry
func (m *Matcher) Register(ctx context.Context, t *models.KnownTower) error {
	if err := m.registry.AddKnownTower(ctx, t); err != nil {
		return WrapStorageError("add_known_tower", err)
	}
	return nil
}
