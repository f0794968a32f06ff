package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/splitsync/internal/database/repository"
	"github.com/jask/splitsync/internal/ledger"
	"github.com/jask/splitsync/internal/reconcile"
)

type fakeLedger struct {
	mu        sync.Mutex
	budget    ledger.Budget
	txs       []ledger.Transaction
	readErr   error
	createErr error
	updateErr error
	created   [][]ledger.MirrorPayload
	patched   [][]ledger.TransactionPatch
	since     ledger.Date
}

func (f *fakeLedger) GetBudget(_ context.Context, budgetID string) (ledger.Budget, error) {
	if f.readErr != nil {
		return ledger.Budget{}, f.readErr
	}
	return f.budget, nil
}

func (f *fakeLedger) GetTransactions(_ context.Context, _ string, since ledger.Date) ([]ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return append([]ledger.Transaction(nil), f.txs...), nil
}

// CreateTransactions stores payloads the way the server would return them on the next read.
func (f *fakeLedger) CreateTransactions(_ context.Context, _ string, payloads []ledger.MirrorPayload) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, payloads)
	names := map[string]string{}
	for _, p := range f.budget.Payees {
		names[p.ID] = p.Name
	}
	var ids []string
	for _, p := range payloads {
		id := fmt.Sprintf("%s-new-%d", f.budget.ID, len(f.txs))
		tx := ledger.Transaction{ID: id, Date: p.Date, Amount: p.Amount, AccountID: p.AccountID, Memo: ledger.Str(p.Memo)}
		for _, sub := range p.Subtransactions {
			st := ledger.Subtransaction{Amount: sub.Amount, PayeeID: sub.PayeeID, CategoryID: sub.CategoryID}
			if sub.PayeeID != nil {
				st.PayeeName = ledger.Str(names[*sub.PayeeID])
			}
			tx.Subtransactions = append(tx.Subtransactions, st)
		}
		f.txs = append(f.txs, tx)
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLedger) UpdateTransactions(_ context.Context, _ string, patches []ledger.TransactionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.patched = append(f.patched, patches)
	return nil
}

type fakeHistory struct {
	runs    []repository.Run
	kinds   []string
	status  string
	summary string
}

func (h *fakeHistory) StartRun(_ context.Context, run repository.Run) error {
	h.runs = append(h.runs, run)
	return nil
}

func (h *fakeHistory) Append(_ context.Context, _ string, kind string, _ any) (repository.Entry, error) {
	h.kinds = append(h.kinds, kind)
	return repository.Entry{Kind: kind}, nil
}

func (h *fakeHistory) FinishRun(_ context.Context, _ string, status, summary string) error {
	h.status, h.summary = status, summary
	return nil
}

type fakeConfirmer struct {
	answer bool
	called int
}

func (c *fakeConfirmer) Confirm(context.Context, []reconcile.Plan) (bool, error) {
	c.called++
	return c.answer, nil
}

type recordingPresenter struct{ plans []reconcile.Plan }

func (p *recordingPresenter) Present(_ context.Context, plans []reconcile.Plan) error {
	p.plans = plans
	return nil
}

func budget(id string) ledger.Budget {
	return ledger.Budget{
		ID:       id,
		Name:     id,
		Accounts: []ledger.Account{{ID: id + "-bank", Name: "Bank"}},
		Payees: []ledger.Payee{
			{ID: id + "-reimb", Name: "Reimbursements"},
			{ID: id + "-grocery", Name: "Grocery Store"},
		},
		Categories: []ledger.Category{
			{ID: id + "-reimb-cat", Name: "Reimbursements"},
			{ID: id + "-food", Name: "Food"},
		},
	}
}

func original(id, date string, total, reimbursement ledger.Milliunits) ledger.Transaction {
	return ledger.Transaction{
		ID:     id,
		Date:   ledger.MustParseDate(date),
		Amount: total,
		Subtransactions: []ledger.Subtransaction{
			{Amount: total - reimbursement, PayeeName: ledger.Str("Grocery"), CategoryName: ledger.Str("Food")},
			{Amount: reimbursement, PayeeName: ledger.Str("Reimbursements")},
		},
	}
}

func newService(p1, p2 *fakeLedger) *SyncService {
	return &SyncService{
		Person1:      Party{Name: "Sam", BudgetID: "b1", Ledger: p1},
		Person2:      Party{Name: "Alex", BudgetID: "b2", Ledger: p2},
		Person1Ratio: 60,
		LookbackDays: 30,
		Resolver:     &reconcile.Resolver{Mode: reconcile.ModeBatch},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
		NewRunID:     func() string { return "run-1" },
	}
}

func TestSyncMirrorsBothDirections(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: budget("b2"), txs: []ledger.Transaction{original("t2", "2024-03-05", -5000, -3000)}}
	svc := newService(p1, p2)
	hist := &fakeHistory{}
	svc.History = hist

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", report.RunID)
	require.Equal(t, 2, report.Pending())
	require.Equal(t, 2, report.Created())
	require.False(t, report.Failed())
	require.Empty(t, report.Warnings())
	require.Equal(t, "Sam -> Alex: 1 created; Alex -> Sam: 1 created", report.Summary())

	require.Equal(t, "2024-02-14", p1.since.String())
	require.Len(t, p2.created, 1)
	toAlex := p2.created[0][0]
	require.Equal(t, "b2-bank", toAlex.AccountID)
	require.Equal(t, ledger.Milliunits(4000), toAlex.Subtransactions[0].Amount)
	require.Equal(t, "b2-grocery", *toAlex.Subtransactions[1].PayeeID)

	require.Len(t, p1.created, 1)
	require.Equal(t, ledger.Milliunits(3000), p1.created[0][0].Subtransactions[0].Amount)

	require.Equal(t, repository.RunCompleted, hist.status)
	require.Equal(t, []string{repository.EntryPlanned, repository.EntryPlanned, repository.EntryCreated, repository.EntryCreated}, hist.kinds)
	require.Equal(t, "batch", hist.runs[0].Mode)
}

func TestSyncIsIdempotent(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: budget("b2")}

	_, err := newService(p1, p2).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, p2.created, 1)

	confirm := &fakeConfirmer{answer: true}
	svc := newService(p1, p2)
	svc.Confirmer = confirm
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Pending())
	require.Equal(t, "nothing to sync", report.Summary())
	require.Equal(t, []reconcile.Fingerprint{"2024-03-01_-4000"}, report.Plans[0].AlreadyMirrored)
	require.Len(t, p2.created, 1)
	require.Zero(t, confirm.called)
}

func TestSyncIntegrityFaultWritesNothing(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{
		original("t1", "2024-03-01", -10000, -4000),
		original("t1b", "2024-03-01", -10000, -4000),
	}}
	p2 := &fakeLedger{budget: budget("b2"), txs: []ledger.Transaction{original("t2", "2024-03-05", -5000, -3000)}}
	svc := newService(p1, p2)
	hist := &fakeHistory{}
	presenter := &recordingPresenter{}
	svc.History = hist
	svc.Presenter = presenter

	_, err := svc.Run(context.Background())
	require.ErrorIs(t, err, reconcile.ErrDuplicateFingerprint)
	require.True(t, reconcile.IsIntegrity(err))
	require.Empty(t, p1.created)
	require.Empty(t, p2.created)
	require.Nil(t, presenter.plans)
	require.Equal(t, repository.RunFailed, hist.status)
}

func TestSyncSplitMismatchAborts(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -5000)}}
	p2 := &fakeLedger{budget: budget("b2")}
	_, err := newService(p1, p2).Run(context.Background())
	require.ErrorIs(t, err, reconcile.ErrSplitMismatch)
	require.Empty(t, p2.created)
}

func TestSyncRejected(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: budget("b2")}
	svc := newService(p1, p2)
	svc.Confirmer = &fakeConfirmer{answer: false}
	hist := &fakeHistory{}
	svc.History = hist

	_, err := svc.Run(context.Background())
	require.ErrorIs(t, err, ErrRejected)
	require.Empty(t, p2.created)
	require.Equal(t, repository.RunRejected, hist.status)
}

func TestSyncPartialFailure(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{
		budget:    budget("b2"),
		txs:       []ledger.Transaction{original("t2", "2024-03-05", -5000, -3000)},
		createErr: errors.New("http 500"),
	}
	svc := newService(p1, p2)
	hist := &fakeHistory{}
	svc.History = hist

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Failed())
	require.True(t, report.Partial())
	require.Len(t, p1.created, 1, "the other direction still writes")
	require.Equal(t, repository.RunPartial, hist.status)

	warnings := report.Warnings()
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], "Sam -> Alex: no mirrors were created")
	require.Contains(t, warnings[1], "Alex -> Sam succeeded but Sam -> Alex failed")
	require.Contains(t, warnings[1], "reconciled manually")
	require.Equal(t, "Sam -> Alex: failed; Alex -> Sam: 1 created", report.Summary())
}

func TestSyncDryRun(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: budget("b2")}
	svc := newService(p1, p2)
	svc.DryRun = true
	presenter := &recordingPresenter{}
	confirm := &fakeConfirmer{answer: true}
	svc.Presenter = presenter
	svc.Confirmer = confirm

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, presenter.plans, 2)
	require.Equal(t, "dry run: 1 mirrors pending", report.Summary())
	require.Empty(t, p2.created)
	require.Zero(t, confirm.called)
}

func TestSyncReadFailure(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1")}
	p2 := &fakeLedger{budget: budget("b2"), readErr: errors.New("unauthorized")}
	_, err := newService(p1, p2).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "read Alex budget")
}

func TestSyncReferenceFault(t *testing.T) {
	b2 := budget("b2")
	b2.Accounts = []ledger.Account{{ID: "x", Name: "Cash"}}
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: b2}
	_, err := newService(p1, p2).Run(context.Background())
	require.ErrorIs(t, err, ledger.ErrNoSettlementAccount)
	require.Contains(t, err.Error(), "Alex reference data")
	require.Empty(t, p2.created)
}

func TestSyncFlagsOriginals(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p2 := &fakeLedger{budget: budget("b2")}
	svc := newService(p1, p2)
	svc.FlagOriginals = true
	svc.FlagColor = "green"

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]ledger.TransactionPatch{{{ID: "t1", FlagColor: "green"}}}, p1.patched)
	require.Equal(t, 1, report.Results[0].Flagged)
}

func TestSyncFlagFailureIsReported(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}, updateErr: errors.New("boom")}
	p2 := &fakeLedger{budget: budget("b2")}
	svc := newService(p1, p2)
	svc.FlagOriginals = true

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Len(t, p2.created, 1)
	require.Contains(t, report.Warnings()[0], "originals not flagged")
}

func TestSyncInteractivePlansSequentially(t *testing.T) {
	p1 := &fakeLedger{budget: budget("b1"), txs: []ledger.Transaction{original("t1", "2024-03-01", -10000, -4000)}}
	p1.txs[0].Subtransactions[0].PayeeName = ledger.Str("Corner Deli")
	p2 := &fakeLedger{budget: budget("b2"), txs: []ledger.Transaction{original("t2", "2024-03-05", -5000, -3000)}}
	p2.txs[0].Subtransactions[0].PayeeName = ledger.Str("Night Market")

	prompter := &countingPrompter{}
	svc := newService(p1, p2)
	svc.Resolver = &reconcile.Resolver{Mode: reconcile.ModeInteractive, Prompter: prompter}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Corner Deli", "Night Market"}, prompter.names)
	require.Contains(t, report.Plans[0].Mirrors[0].Payload.Memo, "unresolved payee: Corner Deli")
}

type countingPrompter struct {
	names []string
}

func (p *countingPrompter) Ask(_ context.Context, q reconcile.Question) (reconcile.Answer, error) {
	p.names = append(p.names, q.Name)
	return reconcile.Answer{Skip: true}, nil
}
