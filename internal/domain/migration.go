package domain

import (
	"time"

	"github.com/google/uuid"
)

// MigrationStatus is the outcome of a guest-to-user cart migration run
type MigrationStatus string

const (
	MigrationRunning   MigrationStatus = "running"
	MigrationCompleted MigrationStatus = "completed"
	MigrationFailed    MigrationStatus = "failed"
)

// MigrationRun records one attempt to move a guest cart into a user cart
type MigrationRun struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	GuestID    string          `json:"guest_id" db:"guest_id"`
	ItemCount  int             `json:"item_count" db:"item_count"`
	Replayed   int             `json:"replayed" db:"replayed"`
	Status     MigrationStatus `json:"status" db:"status"`
	Error      string          `json:"error,omitempty" db:"error"`
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}
