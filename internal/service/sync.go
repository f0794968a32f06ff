package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jask/splitsync/internal/database/repository"
	"github.com/jask/splitsync/internal/ledger"
	"github.com/jask/splitsync/internal/reconcile"
)

// ErrRejected is returned when the operator declines the plan. Nothing is written.
var ErrRejected = errors.New("sync rejected by operator")

// LedgerReader reads one party's ledger.
type LedgerReader interface {
	GetBudget(ctx context.Context, budgetID string) (ledger.Budget, error)
	GetTransactions(ctx context.Context, budgetID string, since ledger.Date) ([]ledger.Transaction, error)
}

// LedgerWriter writes to one party's ledger. Each call is all-or-nothing.
type LedgerWriter interface {
	CreateTransactions(ctx context.Context, budgetID string, payloads []ledger.MirrorPayload) ([]string, error)
	UpdateTransactions(ctx context.Context, budgetID string, patches []ledger.TransactionPatch) error
}

// Ledger is a party's full remote ledger access.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// Party is one participant in the arrangement.
type Party struct {
	Name     string
	BudgetID string
	Ledger   Ledger
}

// Presenter shows the pending plan for both directions.
type Presenter interface {
	Present(ctx context.Context, plans []reconcile.Plan) error
}

// Confirmer asks the operator to accept the plan.
type Confirmer interface {
	Confirm(ctx context.Context, plans []reconcile.Plan) (bool, error)
}

// History records runs. It is never consulted to decide what to write.
type History interface {
	StartRun(ctx context.Context, run repository.Run) error
	Append(ctx context.Context, runID, kind string, payload any) (repository.Entry, error)
	FinishRun(ctx context.Context, id, status, summary string) error
}

// SyncService drives one reconciliation run across both ledgers.
type SyncService struct {
	Person1 Party
	Person2 Party
	// Person1Ratio is person 1's share of expenses person 1 paid; person 2
	// pays with the complement.
	Person1Ratio reconcile.Ratio
	LookbackDays int
	Resolver     *reconcile.Resolver

	Presenter Presenter
	Confirmer Confirmer
	History   History

	DryRun        bool
	FlagOriginals bool
	FlagColor     string

	Logger   *slog.Logger
	Now      func() time.Time
	NewRunID func() string
}

type snapshot struct {
	budget       ledger.Budget
	transactions []ledger.Transaction
}

// Run reads both ledgers, plans both directions, presents and confirms the
// plan, then submits each direction independently. Integrity and read faults
// return an error before anything is written; write faults are reported in
// the Report per direction.
func (s *SyncService) Run(ctx context.Context) (Report, error) {
	log := s.logger()
	report := Report{RunID: s.newRunID(), DryRun: s.DryRun}
	if err := s.Person1Ratio.Validate(); err != nil {
		return report, err
	}
	mode := reconcile.ModeBatch
	if s.Resolver != nil {
		mode = s.Resolver.Mode
	}
	log = log.With("run", report.RunID)
	r := s.startRun(ctx, report.RunID, mode, log)

	since := ledger.DateOf(s.now()).AddDays(-s.LookbackDays)
	var snaps [2]snapshot
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range []Party{s.Person1, s.Person2} {
		i, p := i, p
		g.Go(func() error {
			snap, err := s.read(gctx, p, since)
			snaps[i] = snap
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.finish(ctx, repository.RunFailed, err.Error())
		return report, err
	}
	log.Info("ledgers read", "since", since.String(),
		"person1_transactions", len(snaps[0].transactions), "person2_transactions", len(snaps[1].transactions))

	sides, err := s.sides(snaps)
	if err != nil {
		r.finish(ctx, repository.RunFailed, err.Error())
		return report, err
	}

	plans, err := s.plan(ctx, mode, sides)
	if err != nil {
		log.Error("planning aborted", "err", err)
		r.finish(ctx, repository.RunFailed, err.Error())
		return report, err
	}
	report.Plans = plans
	for _, p := range plans {
		log.Info("direction planned", "direction", p.Direction.String(),
			"pending", len(p.Mirrors), "already_mirrored", len(p.AlreadyMirrored))
		for _, m := range p.Mirrors {
			r.record(ctx, repository.EntryPlanned, plannedEntry{
				Direction:   p.Direction.String(),
				Fingerprint: string(m.Fingerprint),
				SourceID:    m.Source.ID,
				Payload:     m.Payload,
			})
		}
	}

	if s.Presenter != nil {
		if err := s.Presenter.Present(ctx, plans); err != nil {
			r.finish(ctx, repository.RunFailed, err.Error())
			return report, fmt.Errorf("present plan: %w", err)
		}
	}
	if s.DryRun {
		r.finish(ctx, repository.RunDryRun, report.Summary())
		return report, nil
	}
	if report.Pending() == 0 {
		r.finish(ctx, repository.RunCompleted, report.Summary())
		return report, nil
	}
	if s.Confirmer != nil {
		ok, err := s.Confirmer.Confirm(ctx, plans)
		if err != nil {
			r.finish(ctx, repository.RunFailed, err.Error())
			return report, fmt.Errorf("confirm plan: %w", err)
		}
		if !ok {
			r.finish(ctx, repository.RunRejected, "")
			return report, ErrRejected
		}
	}

	targets := []Party{s.Person2, s.Person1}
	for i, p := range plans {
		if p.Empty() {
			continue
		}
		res := s.submit(ctx, r, targets[i], sourceOf(i, s), p)
		if res.Err != nil {
			log.Error("direction failed", "direction", p.Direction.String(), "err", res.Err)
		} else {
			log.Info("direction submitted", "direction", p.Direction.String(), "created", len(res.Created), "flagged", res.Flagged)
		}
		report.Results = append(report.Results, res)
	}

	status := repository.RunCompleted
	switch {
	case report.Partial():
		status = repository.RunPartial
	case report.Failed():
		status = repository.RunFailed
	}
	r.finish(ctx, status, report.Summary())
	return report, nil
}

func sourceOf(i int, s *SyncService) Party {
	if i == 0 {
		return s.Person1
	}
	return s.Person2
}

func (s *SyncService) read(ctx context.Context, p Party, since ledger.Date) (snapshot, error) {
	budget, err := p.Ledger.GetBudget(ctx, p.BudgetID)
	if err != nil {
		return snapshot{}, fmt.Errorf("read %s budget: %w", p.Name, err)
	}
	txs, err := p.Ledger.GetTransactions(ctx, p.BudgetID, since)
	if err != nil {
		return snapshot{}, fmt.Errorf("read %s transactions: %w", p.Name, err)
	}
	return snapshot{budget: budget, transactions: txs}, nil
}

func (s *SyncService) sides(snaps [2]snapshot) ([2]reconcile.Side, error) {
	var out [2]reconcile.Side
	var errs []error
	for i, p := range []Party{s.Person1, s.Person2} {
		refs, err := snaps[i].budget.References()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s reference data: %w", p.Name, err))
		}
		out[i] = reconcile.Side{Name: p.Name, Budget: snaps[i].budget, References: refs, Transactions: snaps[i].transactions}
	}
	return out, errors.Join(errs...)
}

// plan computes person1 -> person2 with person 1's ratio, then the reverse
// with its complement. Batch mode plans both at once; interactive mode plans
// one after the other so prompts never interleave.
func (s *SyncService) plan(ctx context.Context, mode reconcile.Mode, sides [2]reconcile.Side) ([]reconcile.Plan, error) {
	planner := &reconcile.Planner{Resolver: s.Resolver}
	plans := make([]reconcile.Plan, 2)
	ratios := []reconcile.Ratio{s.Person1Ratio, s.Person1Ratio.Complement()}

	if mode == reconcile.ModeBatch {
		g, gctx := errgroup.WithContext(ctx)
		for i := range plans {
			i := i
			g.Go(func() error {
				p, err := planner.Plan(gctx, sides[i], sides[1-i], ratios[i])
				plans[i] = p
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return plans, nil
	}

	for i := range plans {
		p, err := planner.Plan(ctx, sides[i], sides[1-i], ratios[i])
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}
	return plans, nil
}

func (s *SyncService) submit(ctx context.Context, r *runLog, target, source Party, p reconcile.Plan) DirectionResult {
	res := DirectionResult{Direction: p.Direction, Planned: len(p.Mirrors)}
	ids, err := target.Ledger.CreateTransactions(ctx, target.BudgetID, p.Payloads())
	if err != nil {
		res.Err = fmt.Errorf("create mirrors in %s: %w", target.Name, err)
		r.record(ctx, repository.EntryFailed, outcomeEntry{Direction: p.Direction.String(), Error: res.Err.Error()})
		return res
	}
	res.Created = ids
	r.record(ctx, repository.EntryCreated, outcomeEntry{Direction: p.Direction.String(), TransactionIDs: ids})

	if !s.FlagOriginals {
		return res
	}
	patches := p.Patches(s.flagColor())
	if err := source.Ledger.UpdateTransactions(ctx, source.BudgetID, patches); err != nil {
		res.FlagErr = fmt.Errorf("flag originals in %s: %w", source.Name, err)
		r.record(ctx, repository.EntryFailed, outcomeEntry{Direction: p.Direction.String(), Error: res.FlagErr.Error()})
		return res
	}
	res.Flagged = len(patches)
	flagged := make([]string, 0, len(patches))
	for _, patch := range patches {
		flagged = append(flagged, patch.ID)
	}
	r.record(ctx, repository.EntryFlagged, outcomeEntry{Direction: p.Direction.String(), TransactionIDs: flagged})
	return res
}

type plannedEntry struct {
	Direction   string               `json:"direction"`
	Fingerprint string               `json:"fingerprint"`
	SourceID    string               `json:"source_id"`
	Payload     ledger.MirrorPayload `json:"payload"`
}

type outcomeEntry struct {
	Direction      string   `json:"direction"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// runLog writes one run's history. A history store that fails to start the
// run is dropped for the rest of it; history never blocks a sync.
type runLog struct {
	id      string
	history History
	log     *slog.Logger
}

func (s *SyncService) startRun(ctx context.Context, id string, mode reconcile.Mode, log *slog.Logger) *runLog {
	r := &runLog{id: id, history: s.History, log: log}
	if r.history == nil {
		return r
	}
	run := repository.Run{ID: id, StartedAt: s.now().UTC(), Mode: mode.String(), DryRun: s.DryRun}
	if err := r.history.StartRun(ctx, run); err != nil {
		log.Warn("history unavailable", "err", err)
		r.history = nil
	}
	return r
}

func (r *runLog) record(ctx context.Context, kind string, payload any) {
	if r.history == nil {
		return
	}
	if _, err := r.history.Append(ctx, r.id, kind, payload); err != nil {
		r.log.Warn("history append failed", "kind", kind, "err", err)
	}
}

func (r *runLog) finish(ctx context.Context, status, summary string) {
	if r.history == nil {
		return
	}
	if err := r.history.FinishRun(ctx, r.id, status, summary); err != nil {
		r.log.Warn("history finish failed", "err", err)
	}
}

func (s *SyncService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *SyncService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SyncService) newRunID() string {
	if s.NewRunID != nil {
		return s.NewRunID()
	}
	return uuid.NewString()
}

func (s *SyncService) flagColor() string {
	if s.FlagColor != "" {
		return s.FlagColor
	}
	return "blue"
}
