package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jask/splitsync/internal/audit"
	"github.com/jask/splitsync/internal/database"
)

// HistoryRepo records sync runs and their hash-chained audit entries. It is
// write-mostly: nothing in a sync reads it back to decide what to write.
type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) StartRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = RunStarted
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = database.Now()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO sync_runs(id, started_at, mode, dry_run, status, summary)
	VALUES(?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Mode, run.DryRun, run.Status, run.Summary)
	return err
}

func (r *HistoryRepo) FinishRun(ctx context.Context, id, status, summary string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		status, summary, database.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Append stores payload as JSON, chained to the last stored entry.
func (r *HistoryRepo) Append(ctx context.Context, runID, kind string, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s entry: %w", kind, err)
	}
	var out Entry
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var head string
		err := tx.QueryRowContext(ctx, `SELECT hash FROM audit_entries ORDER BY seq DESC LIMIT 1`).Scan(&head)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		e := audit.NewChain(head).Append(runID, kind, string(raw))
		res, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries(run_id, kind, payload, created_at, previous_hash, hash)
		VALUES(?, ?, ?, ?, ?, ?)
		`, e.RunID, e.Kind, e.Payload, e.Timestamp, e.PreviousHash, e.Hash)
		if err != nil {
			return err
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}
		out = Entry{Seq: seq, RunID: e.RunID, Kind: e.Kind, Payload: e.Payload, CreatedAt: e.Timestamp, PreviousHash: e.PreviousHash, Hash: e.Hash}
		return nil
	})
	return out, err
}

func (r *HistoryRepo) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, started_at, finished_at, mode, dry_run, status, summary FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (r *HistoryRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, started_at, finished_at, mode, dry_run, status, summary FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Entries lists entries in write order; an empty runID lists all of them.
func (r *HistoryRepo) Entries(ctx context.Context, runID string) ([]Entry, error) {
	q := `SELECT seq, run_id, kind, payload, created_at, previous_hash, hash FROM audit_entries`
	var args []interface{}
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.RunID, &e.Kind, &e.Payload, &e.CreatedAt, &e.PreviousHash, &e.Hash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Verify checks the whole stored chain.
func (r *HistoryRepo) Verify(ctx context.Context) error {
	entries, err := r.Entries(ctx, "")
	if err != nil {
		return err
	}
	chain := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		chain = append(chain, audit.Entry{RunID: e.RunID, Kind: e.Kind, Payload: e.Payload, Timestamp: e.CreatedAt, PreviousHash: e.PreviousHash, Hash: e.Hash})
	}
	if len(chain) > 0 && chain[0].PreviousHash != audit.GenesisHash {
		return &audit.BrokenLinkError{Index: 0, Reason: "first entry does not start the chain"}
	}
	return audit.Verify(chain)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var finished sql.NullTime
	if err := s.Scan(&run.ID, &run.StartedAt, &finished, &run.Mode, &run.DryRun, &run.Status, &run.Summary); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
