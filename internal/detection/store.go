package detection

import (
	"context"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// Column names a numeric sighting column the store can aggregate over
type Column string

// Aggregatable columns
const (
	ColumnTimestamp Column = "timestamp"
	ColumnTxPower   Column = "tx_pwr"
	ColumnRSSI      Column = "rssi"
)

// Valid reports whether c is one of the aggregatable columns
func (c Column) Valid() bool {
	switch c {
	case ColumnTimestamp, ColumnTxPower, ColumnRSSI:
		return true
	}
	return false
}

// SightingStore is the durable, append-only record of observations
type SightingStore interface {
	InsertSighting(ctx context.Context, s *models.Sighting) error
	SightingsByIdentity(ctx context.Context, id Identity) ([]models.Sighting, error)
	AllDistinctIdentities(ctx context.Context) ([]Identity, error)
	MinColumn(ctx context.Context, id Identity, col Column) (float64, bool, error)
	MaxColumn(ctx context.Context, id Identity, col Column) (float64, bool, error)
}

// TowerRegistry is the curated set of legitimate towers
type TowerRegistry interface {
	AllKnownTowers(ctx context.Context) ([]models.KnownTower, error)
	AddKnownTower(ctx context.Context, t *models.KnownTower) error
}
