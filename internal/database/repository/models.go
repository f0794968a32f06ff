package repository

import "time"

// Run statuses.
const (
	RunStarted   = "started"
	RunRejected  = "rejected"
	RunDryRun    = "dry_run"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// Audit entry kinds.
const (
	EntryPlanned = "planned"
	EntryCreated = "created"
	EntryFlagged = "flagged"
	EntryFailed  = "failed"
)

// Run represents a sync run row.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Mode       string
	DryRun     bool
	Status     string
	Summary    string
}

// Entry represents an audit entry row.
type Entry struct {
	Seq          int64
	RunID        string
	Kind         string
	Payload      string
	CreatedAt    string
	PreviousHash string
	Hash         string
}
