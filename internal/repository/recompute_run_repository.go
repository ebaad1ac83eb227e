package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// RecomputeRunRepository handles database operations for recompute runs
type RecomputeRunRepository struct {
	db *sql.DB
}

// NewRecomputeRunRepository creates a new recompute run repository
func NewRecomputeRunRepository(db *sql.DB) *RecomputeRunRepository {
	return &RecomputeRunRepository{db: db}
}

// Create inserts a run in the running state
func (r *RecomputeRunRepository) Create(ctx context.Context, run *models.RecomputeRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.RecomputeStatusRunning

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO recompute_runs (status, triggered_by, started_at) VALUES (?, ?, ?)`,
		run.Status, run.TriggeredBy, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recompute run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// Finish stores the final state of a run
func (r *RecomputeRunRepository) Finish(ctx context.Context, run *models.RecomputeRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now

	query := `
		UPDATE recompute_runs
		SET status = ?,
		    clusters = ?,
		    sightings = ?,
		    duration_ms = ?,
		    error_message = ?,
		    completed_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		run.Status, run.Clusters, run.Sightings, run.DurationMS, run.ErrorMessage, now, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish recompute run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RecomputeRunRepository) GetByID(ctx context.Context, id int64) (*models.RecomputeRun, error) {
	query := `
		SELECT id, status, clusters, sightings, duration_ms, error_message, triggered_by,
		       started_at, completed_at
		FROM recompute_runs
		WHERE id = ?
	`

	run := &models.RecomputeRun{}
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Status, &run.Clusters, &run.Sightings, &run.DurationMS,
		&run.ErrorMessage, &run.TriggeredBy, &run.StartedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recompute run: %w", err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}
