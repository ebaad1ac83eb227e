package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// KnownTowerRepository handles database operations for the known-tower registry
type KnownTowerRepository struct {
	db *sql.DB
}

// NewKnownTowerRepository creates a new known tower repository
func NewKnownTowerRepository(db *sql.DB) *KnownTowerRepository {
	return &KnownTowerRepository{db: db}
}

// AllKnownTowers returns the registry in insertion order
func (r *KnownTowerRepository) AllKnownTowers(ctx context.Context) ([]models.KnownTower, error) {
	query := `SELECT id, mcc, mnc, tac, enodeb_id, name, lat, lon, created_at
		FROM known_towers
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query known towers: %w", err)
	}
	defer rows.Close()

	var towers []models.KnownTower
	for rows.Next() {
		var t models.KnownTower
		if err := rows.Scan(&t.ID, &t.MCC, &t.MNC, &t.TAC, &t.EnodebID, &t.Name, &t.Lat, &t.Lon, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan known tower: %w", err)
		}
		towers = append(towers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate known towers: %w", err)
	}

	return towers, nil
}

// AddKnownTower inserts a tower and sets its ID and creation time
func (r *KnownTowerRepository) AddKnownTower(ctx context.Context, t *models.KnownTower) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	query := `
		INSERT INTO known_towers (mcc, mnc, tac, enodeb_id, name, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		t.MCC, t.MNC, t.TAC, t.EnodebID, t.Name, t.Lat, t.Lon, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert known tower: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// Version returns the registry version. Triggers bump it on every insert, update or
// delete, including writes made by other processes.
func (r *KnownTowerRepository) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM store_versions WHERE name = 'known_towers'`,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get registry version: %w", err)
	}
	return version, nil
}
