package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/models"
)

const sightingColumns = `id, mcc, mnc, tac, enodeb_id, sector_id, cid, phy_cell_id, earfcn,
		lat, lon, tx_pwr, rssi, raw_sib1, timestamp`

// SightingRepository handles database operations for sightings
type SightingRepository struct {
	db *sql.DB
}

// NewSightingRepository creates a new sighting repository
func NewSightingRepository(db *sql.DB) *SightingRepository {
	return &SightingRepository{db: db}
}

// InsertSighting appends a sighting and sets its ID
func (r *SightingRepository) InsertSighting(ctx context.Context, s *models.Sighting) error {
	query := `
		INSERT INTO sightings (
			mcc, mnc, tac, enodeb_id, sector_id, cid, phy_cell_id, earfcn,
			lat, lon, tx_pwr, rssi, raw_sib1, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		s.MCC, s.MNC, s.TAC, s.EnodebID, s.SectorID, s.CID, s.PhyCellID, s.EARFCN,
		s.Lat, s.Lon, s.TxPower, s.RSSI, s.RawSIB1, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sighting: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = id
	return nil
}

// SightingsByIdentity returns every sighting of an identity ordered by timestamp
func (r *SightingRepository) SightingsByIdentity(ctx context.Context, id detection.Identity) ([]models.Sighting, error) {
	query := `SELECT ` + sightingColumns + `
		FROM sightings
		WHERE mcc = ? AND mnc = ? AND tac = ? AND enodeb_id = ?
		ORDER BY timestamp ASC, id ASC`

	return r.query(ctx, query, id.MCC, id.MNC, id.TAC, id.EnodebID)
}

// SimilarSightings returns sightings sharing identity and cell id with s, s included
func (r *SightingRepository) SimilarSightings(ctx context.Context, s models.Sighting) ([]models.Sighting, error) {
	query := `SELECT ` + sightingColumns + `
		FROM sightings
		WHERE mcc = ? AND mnc = ? AND tac = ? AND enodeb_id = ? AND cid = ?
		ORDER BY timestamp ASC, id ASC`

	return r.query(ctx, query, s.MCC, s.MNC, s.TAC, s.EnodebID, s.CID)
}

// GetSighting retrieves a single sighting by ID
func (r *SightingRepository) GetSighting(ctx context.Context, id int64) (*models.Sighting, error) {
	query := `SELECT ` + sightingColumns + ` FROM sightings WHERE id = ?`

	var s models.Sighting
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.MCC, &s.MNC, &s.TAC, &s.EnodebID, &s.SectorID, &s.CID, &s.PhyCellID, &s.EARFCN,
		&s.Lat, &s.Lon, &s.TxPower, &s.RSSI, &s.RawSIB1, &s.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}

	return &s, nil
}

// AllDistinctIdentities returns every identity that has at least one sighting
func (r *SightingRepository) AllDistinctIdentities(ctx context.Context) ([]detection.Identity, error) {
	query := `SELECT DISTINCT mcc, mnc, tac, enodeb_id
		FROM sightings
		ORDER BY mcc, mnc, tac, enodeb_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var ids []detection.Identity
	for rows.Next() {
		var id detection.Identity
		if err := rows.Scan(&id.MCC, &id.MNC, &id.TAC, &id.EnodebID); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identities: %w", err)
	}

	return ids, nil
}

// CountSightings returns the total number of stored sightings
func (r *SightingRepository) CountSightings(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sightings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return count, nil
}

// IdentityStamp summarizes the stored sightings of one identity. Ids only ever grow, so
// any insert or delete, from this process or another one, changes the stamp.
type IdentityStamp struct {
	Count int64
	MaxID int64
}

// IdentityStamp returns the current stamp of one identity; the zero stamp when it has no
// sightings
func (r *SightingRepository) IdentityStamp(ctx context.Context, id detection.Identity) (IdentityStamp, error) {
	query := `SELECT COUNT(*), COALESCE(MAX(id), 0)
		FROM sightings
		WHERE mcc = ? AND mnc = ? AND tac = ? AND enodeb_id = ?`

	var stamp IdentityStamp
	err := r.db.QueryRowContext(ctx, query, id.MCC, id.MNC, id.TAC, id.EnodebID).Scan(&stamp.Count, &stamp.MaxID)
	if err != nil {
		return IdentityStamp{}, fmt.Errorf("failed to stamp identity: %w", err)
	}
	return stamp, nil
}

// IdentityStamps returns the stamp of every identity in one pass
func (r *SightingRepository) IdentityStamps(ctx context.Context) (map[detection.Identity]IdentityStamp, error) {
	query := `SELECT mcc, mnc, tac, enodeb_id, COUNT(*), MAX(id)
		FROM sightings
		GROUP BY mcc, mnc, tac, enodeb_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity stamps: %w", err)
	}
	defer rows.Close()

	stamps := make(map[detection.Identity]IdentityStamp)
	for rows.Next() {
		var id detection.Identity
		var stamp IdentityStamp
		if err := rows.Scan(&id.MCC, &id.MNC, &id.TAC, &id.EnodebID, &stamp.Count, &stamp.MaxID); err != nil {
			return nil, fmt.Errorf("failed to scan identity stamp: %w", err)
		}
		stamps[id] = stamp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identity stamps: %w", err)
	}

	return stamps, nil
}

// MinColumn returns the minimum of col over an identity's sightings; ok is false when the
// identity has none
func (r *SightingRepository) MinColumn(ctx context.Context, id detection.Identity, col detection.Column) (float64, bool, error) {
	return r.aggregate(ctx, "MIN", id, col)
}

// MaxColumn returns the maximum of col over an identity's sightings; ok is false when the
// identity has none
func (r *SightingRepository) MaxColumn(ctx context.Context, id detection.Identity, col detection.Column) (float64, bool, error) {
	return r.aggregate(ctx, "MAX", id, col)
}

func (r *SightingRepository) aggregate(ctx context.Context, fn string, id detection.Identity, col detection.Column) (float64, bool, error) {
	// Column names cannot be bound; only the enumerated columns reach the query
	if !col.Valid() {
		return 0, false, fmt.Errorf("%w: column %q cannot be aggregated", detection.ErrInvalidInput, col)
	}

	query := fmt.Sprintf(`SELECT %s(%s) FROM sightings
		WHERE mcc = ? AND mnc = ? AND tac = ? AND enodeb_id = ?`, fn, string(col))

	var value sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, id.MCC, id.MNC, id.TAC, id.EnodebID).Scan(&value)
	if err != nil {
		return 0, false, fmt.Errorf("failed to aggregate %s(%s): %w", fn, col, err)
	}
	if !value.Valid {
		return 0, false, nil
	}
	return value.Float64, true, nil
}

func (r *SightingRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []models.Sighting
	for rows.Next() {
		var s models.Sighting
		err := rows.Scan(
			&s.ID, &s.MCC, &s.MNC, &s.TAC, &s.EnodebID, &s.SectorID, &s.CID, &s.PhyCellID, &s.EARFCN,
			&s.Lat, &s.Lon, &s.TxPower, &s.RSSI, &s.RawSIB1, &s.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sightings: %w", err)
	}

	return sightings, nil
}
