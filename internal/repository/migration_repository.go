package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrMigrationRunNotFound = errors.New("migration run not found")
)

// MigrationJournal records guest-to-user cart migrations. It only observes:
// nothing in the migration flow reads it back.
type MigrationJournal interface {
	Start(ctx context.Context, run *domain.MigrationRun) error
	RecordReplay(ctx context.Context, runID uuid.UUID, item domain.CartItem, cartItemID string) error
	Finish(ctx context.Context, runID uuid.UUID, status domain.MigrationStatus, errMsg string) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.MigrationRun, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.MigrationRun, error)
}

type migrationJournal struct {
	db *sql.DB
}

// NewMigrationJournal creates a PostgreSQL-backed MigrationJournal
func NewMigrationJournal(db *sql.DB) MigrationJournal {
	return &migrationJournal{db: db}
}

// Start inserts a new run in the running state
func (r *migrationJournal) Start(ctx context.Context, run *domain.MigrationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = domain.MigrationRunning

	query := `
		INSERT INTO migration_runs (id, user_id, guest_id, item_count, replayed, status, started_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.GuestID,
		run.ItemCount,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to start migration run: %w", err)
	}

	return nil
}

// RecordReplay stores one replayed line and bumps the run's counter in a
// single transaction
func (r *migrationJournal) RecordReplay(ctx context.Context, runID uuid.UUID, item domain.CartItem, cartItemID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO migration_replays (run_id, product_id, quantity, cart_item_id, replayed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, runID, item.ProductID, item.Quantity, cartItemID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record replay: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE migration_runs SET replayed = replayed + 1 WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to update replay count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMigrationRunNotFound
	}

	return tx.Commit()
}

// Finish marks a run completed or failed
func (r *migrationJournal) Finish(ctx context.Context, runID uuid.UUID, status domain.MigrationStatus, errMsg string) error {
	query := `
		UPDATE migration_runs
		SET status = $2, error = $3, finished_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, runID, status, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to finish migration run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMigrationRunNotFound
	}

	return nil
}

// FindByID retrieves a run by ID
func (r *migrationJournal) FindByID(ctx context.Context, id uuid.UUID) (*domain.MigrationRun, error) {
	query := `
		SELECT id, user_id, guest_id, item_count, replayed, status, COALESCE(error, ''), started_at, finished_at
		FROM migration_runs
		WHERE id = $1
	`

	run, err := scanMigrationRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMigrationRunNotFound
		}
		return nil, fmt.Errorf("failed to find migration run: %w", err)
	}

	return run, nil
}

// ListByUser returns the most recent runs for a user, newest first
func (r *migrationJournal) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.MigrationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, guest_id, item_count, replayed, status, COALESCE(error, ''), started_at, finished_at
		FROM migration_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list migration runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.MigrationRun{}
	for rows.Next() {
		run, err := scanMigrationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration run: %w", err)
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMigrationRun(row rowScanner) (*domain.MigrationRun, error) {
	run := &domain.MigrationRun{}
	var finishedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.GuestID,
		&run.ItemCount,
		&run.Replayed,
		&run.Status,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// nopMigrationJournal is used when no database is configured
type nopMigrationJournal struct{}

// NewNopMigrationJournal returns a journal that records nothing
func NewNopMigrationJournal() MigrationJournal {
	return nopMigrationJournal{}
}

func (nopMigrationJournal) Start(ctx context.Context, run *domain.MigrationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = domain.MigrationRunning
	return nil
}

func (nopMigrationJournal) RecordReplay(context.Context, uuid.UUID, domain.CartItem, string) error {
	return nil
}

func (nopMigrationJournal) Finish(context.Context, uuid.UUID, domain.MigrationStatus, string) error {
	return nil
}

func (nopMigrationJournal) FindByID(context.Context, uuid.UUID) (*domain.MigrationRun, error) {
	return nil, ErrMigrationRunNotFound
}

func (nopMigrationJournal) ListByUser(context.Context, string, int) ([]*domain.MigrationRun, error) {
	return []*domain.MigrationRun{}, nil
}
