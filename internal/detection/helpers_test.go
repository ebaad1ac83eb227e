package detection

import (
	"context"
	"sync"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// memStore is an in-memory SightingStore and TowerRegistry
type memStore struct {
	mu        sync.Mutex
	sightings []models.Sighting
	towers    []models.KnownTower
	err       error
}

func (m *memStore) InsertSighting(_ context.Context, s *models.Sighting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	s.ID = int64(len(m.sightings) + 1)
	m.sightings = append(m.sightings, *s)
	return nil
}

func (m *memStore) SightingsByIdentity(_ context.Context, id Identity) ([]models.Sighting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Sighting
	for _, s := range m.sightings {
		if IdentityOf(s) == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) AllDistinctIdentities(_ context.Context) ([]Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	seen := make(map[Identity]bool)
	var ids []Identity
	// Reverse insertion order so callers cannot rely on store order
	for i := len(m.sightings) - 1; i >= 0; i-- {
		id := IdentityOf(m.sightings[i])
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) column(id Identity, col Column, better func(a, b float64) bool) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, false, m.err
	}
	var best float64
	found := false
	for _, s := range m.sightings {
		if IdentityOf(s) != id {
			continue
		}
		var v float64
		switch col {
		case ColumnTimestamp:
			v = float64(s.Timestamp)
		case ColumnTxPower:
			v = s.TxPower
		case ColumnRSSI:
			v = s.RSSI
		}
		if !found || better(v, best) {
			best, found = v, true
		}
	}
	return best, found, nil
}

func (m *memStore) MinColumn(_ context.Context, id Identity, col Column) (float64, bool, error) {
	return m.column(id, col, func(a, b float64) bool { return a < b })
}

func (m *memStore) MaxColumn(_ context.Context, id Identity, col Column) (float64, bool, error) {
	return m.column(id, col, func(a, b float64) bool { return a > b })
}

func (m *memStore) AllKnownTowers(_ context.Context) ([]models.KnownTower, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.KnownTower(nil), m.towers...), nil
}

func (m *memStore) AddKnownTower(_ context.Context, t *models.KnownTower) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	t.ID = int64(len(m.towers) + 1)
	m.towers = append(m.towers, *t)
	return nil
}

var (
	identityX = Identity{MCC: 310, MNC: 410, TAC: 7, EnodebID: 1001}
	identityY = Identity{MCC: 310, MNC: 260, TAC: 9, EnodebID: 2002}
)

func sightingOf(id Identity, lat, lon, power float64, ts int64) models.Sighting {
	return models.Sighting{
		MCC:       id.MCC,
		MNC:       id.MNC,
		TAC:       id.TAC,
		EnodebID:  id.EnodebID,
		SectorID:  1,
		CID:       id.EnodebID*256 + 1,
		PhyCellID: 42,
		EARFCN:    5230,
		Lat:       lat,
		Lon:       lon,
		TxPower:   power,
		Timestamp: ts,
	}
}

// scenarioX is three equally weighted sightings on a right triangle
func scenarioX() []models.Sighting {
	return []models.Sighting{
		sightingOf(identityX, 40.0, -105.0, -60, 1000),
		sightingOf(identityX, 40.01, -105.0, -60, 1000),
		sightingOf(identityX, 40.0, -104.99, -60, 1000),
	}
}

func towerAt(id Identity, name string, lat, lon float64) models.KnownTower {
	return models.KnownTower{
		MCC:      id.MCC,
		MNC:      id.MNC,
		TAC:      id.TAC,
		EnodebID: id.EnodebID,
		Name:     name,
		Lat:      lat,
		Lon:      lon,
	}
}
