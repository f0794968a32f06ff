package reconcile

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jask/splitsync/internal/ledger"
)

const (
	// SyncMarker opens the memo of every mirror.
	SyncMarker = "SYNCED"
	// MirrorFlagColor marks transactions created by a sync.
	MirrorFlagColor = "purple"
	maxMemoRunes    = 200
)

// Side is one ledger's snapshot for a run.
type Side struct {
	Name         string
	Budget       ledger.Budget
	References   ledger.References
	Transactions []ledger.Transaction
}

// Direction names the source and target of one half of a run.
type Direction struct {
	Source string
	Target string
}

func (d Direction) String() string { return d.Source + " -> " + d.Target }

// Mirror is one pending mirror and how it was derived.
type Mirror struct {
	Fingerprint Fingerprint
	Source      ledger.Transaction
	Main        ledger.Subtransaction
	Payee       Resolution
	Category    Resolution
	Payload     ledger.MirrorPayload
}

// Plan is the pending work for one direction.
type Plan struct {
	Direction  Direction
	PayerRatio Ratio
	Mirrors    []Mirror
	// AlreadyMirrored lists source fingerprints whose mirror exists on the target.
	AlreadyMirrored []Fingerprint
}

// Empty reports whether there is nothing to write.
func (p Plan) Empty() bool { return len(p.Mirrors) == 0 }

// Payloads returns the mirrors to create, in source order.
func (p Plan) Payloads() []ledger.MirrorPayload {
	out := make([]ledger.MirrorPayload, 0, len(p.Mirrors))
	for _, m := range p.Mirrors {
		out = append(out, m.Payload)
	}
	return out
}

// Patches flags every mirrored original with color.
func (p Plan) Patches(color string) []ledger.TransactionPatch {
	out := make([]ledger.TransactionPatch, 0, len(p.Mirrors))
	for _, m := range p.Mirrors {
		out = append(out, ledger.TransactionPatch{ID: m.Source.ID, FlagColor: color})
	}
	return out
}

// Planner computes the mirrors one direction still needs.
type Planner struct {
	Resolver *Resolver
}

// Plan indexes existing mirrors on target and originals on source, validates
// every original's split against payerRatio, and builds a mirror payload for
// each original whose complementary fingerprint is missing on target.
func (p *Planner) Plan(ctx context.Context, source, target Side, payerRatio Ratio) (Plan, error) {
	plan := Plan{Direction: Direction{Source: source.Name, Target: target.Name}, PayerRatio: payerRatio}
	if err := payerRatio.Validate(); err != nil {
		return plan, err
	}

	mirrors, err := BuildIndex(target.Transactions, Mirrors, nil)
	if err != nil {
		return plan, fmt.Errorf("%s: scan %s mirrors: %w", plan.Direction, target.Name, err)
	}
	originals, err := BuildIndex(source.Transactions, Originals, func(c Candidate) error {
		return ValidateSplit(c, payerRatio)
	})
	if err != nil {
		return plan, fmt.Errorf("%s: scan %s originals: %w", plan.Direction, source.Name, err)
	}

	payees := payeeCandidates(target)
	categories := categoryCandidates(target)
	resolver := p.Resolver
	if resolver == nil {
		resolver = &Resolver{Mode: ModeBatch}
	}

	for _, fp := range originals.Keys() {
		complement, err := fp.Complement()
		if err != nil {
			return plan, err
		}
		if mirrors.Contains(complement) {
			plan.AlreadyMirrored = append(plan.AlreadyMirrored, fp)
			continue
		}
		c, _ := originals.Lookup(fp)
		payee, err := resolver.Resolve(ctx, KindPayee, ledger.Deref(c.Main.PayeeName), payees)
		if err != nil {
			return plan, fmt.Errorf("%s: resolve payee for %s: %w", plan.Direction, fp, err)
		}
		category, err := resolver.Resolve(ctx, KindCategory, ledger.Deref(c.Main.CategoryName), categories)
		if err != nil {
			return plan, fmt.Errorf("%s: resolve category for %s: %w", plan.Direction, fp, err)
		}
		payload, err := BuildMirror(c, target.References, payee, category)
		if err != nil {
			return plan, fmt.Errorf("%s: %w", plan.Direction, err)
		}
		plan.Mirrors = append(plan.Mirrors, Mirror{
			Fingerprint: fp,
			Source:      c.Transaction,
			Main:        c.Main,
			Payee:       payee,
			Category:    category,
			Payload:     payload,
		})
	}
	return plan, nil
}

// BuildMirror assembles the target-side transaction for an original: zero
// total, the negated reimbursement into the target's reimbursement
// payee/category, and the reimbursement amount into the resolved main leg.
func BuildMirror(c Candidate, refs ledger.References, payee, category Resolution) (ledger.MirrorPayload, error) {
	if c.Main.PayeeName != nil && ledger.IsReimbursementName(*c.Main.PayeeName) {
		return ledger.MirrorPayload{}, &IntegrityError{Kind: ErrInvariant, Fingerprint: c.Fingerprint,
			TransactionIDs: []string{c.Transaction.ID}, Detail: "main leg is a reimbursement leg"}
	}
	amount := c.Reimbursement.Amount
	if amount >= 0 {
		return ledger.MirrorPayload{}, &IntegrityError{Kind: ErrInvariant, Fingerprint: c.Fingerprint,
			TransactionIDs: []string{c.Transaction.ID}, Detail: fmt.Sprintf("reimbursement amount %d is not negative", amount)}
	}
	return ledger.MirrorPayload{
		AccountID: refs.SettlementAccountID,
		Date:      c.Transaction.Date,
		Amount:    0,
		Memo:      mirrorMemo(c.Transaction.Memo, payee, category),
		Cleared:   "cleared",
		Approved:  true,
		FlagColor: MirrorFlagColor,
		Subtransactions: []ledger.SubtransactionPayload{
			{Amount: -amount, PayeeID: ledger.Str(refs.ReimbursementPayeeID), CategoryID: ledger.Str(refs.ReimbursementCategoryID)},
			{Amount: amount, PayeeID: payee.ID, CategoryID: category.ID},
		},
	}, nil
}

func mirrorMemo(sourceMemo *string, resolutions ...Resolution) string {
	var b strings.Builder
	b.WriteString(SyncMarker)
	if memo := strings.TrimSpace(ledger.Deref(sourceMemo)); memo != "" {
		b.WriteString(" - ")
		b.WriteString(memo)
	}
	for _, r := range resolutions {
		if r.Annotate && !r.Resolved() {
			fmt.Fprintf(&b, " | unresolved %s: %s", r.Kind, r.Name)
		}
	}
	return truncateRunes(b.String(), maxMemoRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// payeeCandidates lists target payees, leaving out reimbursement payees so a
// main leg can never resolve onto one and turn the mirror into a non-split.
func payeeCandidates(target Side) []Named {
	out := make([]Named, 0, len(target.Budget.Payees))
	for _, p := range target.Budget.Payees {
		if p.Deleted || p.Name == "" || ledger.IsReimbursementName(p.Name) {
			continue
		}
		out = append(out, Named{ID: p.ID, Name: p.Name})
	}
	return out
}

func categoryCandidates(target Side) []Named {
	out := make([]Named, 0, len(target.Budget.Categories))
	for _, c := range target.Budget.Categories {
		if c.Deleted || c.Name == "" || ledger.IsReimbursementName(c.Name) {
			continue
		}
		out = append(out, Named{ID: c.ID, Name: c.Name})
	}
	return out
}
