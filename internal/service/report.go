package service

import (
	"fmt"
	"strings"

	"github.com/jask/splitsync/internal/reconcile"
)

// DirectionResult is the write outcome for one direction.
type DirectionResult struct {
	Direction reconcile.Direction
	Planned   int
	Created   []string
	Flagged   int
	// Err is set when the mirrors could not be created.
	Err error
	// FlagErr is set when mirrors were created but the originals could not be flagged.
	FlagErr error
}

// OK reports whether the mirrors were created.
func (r DirectionResult) OK() bool { return r.Err == nil }

// Report is the outcome of a run.
type Report struct {
	RunID   string
	DryRun  bool
	Plans   []reconcile.Plan
	Results []DirectionResult
}

// Pending counts mirrors planned across both directions.
func (r Report) Pending() int {
	n := 0
	for _, p := range r.Plans {
		n += len(p.Mirrors)
	}
	return n
}

// Created counts mirrors created across both directions.
func (r Report) Created() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Created)
	}
	return n
}

// Failed reports whether any direction failed to write its mirrors.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return true
		}
	}
	return false
}

// Partial reports whether one direction was written and another failed.
// The two ledgers are then out of step and need manual reconciliation.
func (r Report) Partial() bool {
	var ok, failed bool
	for _, res := range r.Results {
		if res.OK() {
			ok = true
		} else {
			failed = true
		}
	}
	return ok && failed
}

// Warnings lists what the operator must fix by hand.
func (r Report) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, fmt.Sprintf("%s: no mirrors were created (%v)", res.Direction, res.Err))
		}
		if res.FlagErr != nil {
			out = append(out, fmt.Sprintf("%s: mirrors created but originals not flagged (%v)", res.Direction, res.FlagErr))
		}
	}
	if r.Partial() {
		var done, failed []string
		for _, res := range r.Results {
			if res.OK() {
				done = append(done, res.Direction.String())
			} else {
				failed = append(failed, res.Direction.String())
			}
		}
		out = append(out, fmt.Sprintf("%s succeeded but %s failed; the ledgers must be reconciled manually",
			strings.Join(done, ", "), strings.Join(failed, ", ")))
	}
	return out
}

// Summary is a one-line outcome.
func (r Report) Summary() string {
	switch {
	case r.Pending() == 0:
		return "nothing to sync"
	case r.DryRun:
		return fmt.Sprintf("dry run: %d mirrors pending", r.Pending())
	case len(r.Results) == 0:
		return fmt.Sprintf("%d mirrors pending, nothing written", r.Pending())
	}
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.OK() {
			parts = append(parts, fmt.Sprintf("%s: %d created", res.Direction, len(res.Created)))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed", res.Direction))
		}
	}
	return strings.Join(parts, "; ")
}
