package reconcile

import (
	"strconv"
	"strings"

	"github.com/jask/splitsync/internal/ledger"
)

// Fingerprint identifies a shared expense by its date and signed reimbursement amount.
type Fingerprint string

// Polarity selects which reimbursement legs a scan indexes.
type Polarity int

const (
	// Mirrors indexes positive reimbursement legs, i.e. mirrors already created.
	Mirrors Polarity = iota
	// Originals indexes negative reimbursement legs, i.e. expenses paid on this side.
	Originals
)

func (p Polarity) String() string {
	if p == Mirrors {
		return "mirrors"
	}
	return "originals"
}

func (p Polarity) matches(amount ledger.Milliunits) bool {
	if p == Mirrors {
		return amount > 0
	}
	return amount < 0
}

// NewFingerprint renders date and amount as "<date>_<amount>".
func NewFingerprint(date ledger.Date, amount ledger.Milliunits) (Fingerprint, error) {
	fp := Fingerprint(date.String() + "_" + strconv.FormatInt(int64(amount), 10))
	if strings.Contains(string(fp), "--") {
		return "", &IntegrityError{Kind: ErrMalformedFingerprint, Fingerprint: fp, Detail: "adjacent minus signs"}
	}
	return fp, nil
}

// Complement is the fingerprint of the same expense seen from the other ledger.
func (f Fingerprint) Complement() (Fingerprint, error) {
	date, amount, err := f.parts()
	if err != nil {
		return "", err
	}
	return NewFingerprint(date, -amount)
}

func (f Fingerprint) parts() (ledger.Date, ledger.Milliunits, error) {
	s := string(f)
	i := strings.LastIndexByte(s, '_')
	if i < 0 {
		return ledger.Date{}, 0, &IntegrityError{Kind: ErrMalformedFingerprint, Fingerprint: f, Detail: "missing separator"}
	}
	date, err := ledger.ParseDate(s[:i])
	if err != nil {
		return ledger.Date{}, 0, &IntegrityError{Kind: ErrMalformedFingerprint, Fingerprint: f, Detail: err.Error()}
	}
	amount, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return ledger.Date{}, 0, &IntegrityError{Kind: ErrMalformedFingerprint, Fingerprint: f, Detail: err.Error()}
	}
	return date, ledger.Milliunits(amount), nil
}

// Candidate is a transaction that qualified for an index, with its legs split out.
type Candidate struct {
	Fingerprint   Fingerprint
	Transaction   ledger.Transaction
	Main          ledger.Subtransaction
	Reimbursement ledger.Subtransaction
}

// Index maps fingerprints to the transactions that produced them, keeping scan order.
type Index struct {
	polarity Polarity
	keys     []Fingerprint
	entries  map[Fingerprint]Candidate
}

// Polarity returns the polarity the index was built with.
func (ix *Index) Polarity() Polarity { return ix.polarity }

// Len returns the number of indexed transactions.
func (ix *Index) Len() int { return len(ix.keys) }

// Keys returns fingerprints in the order their transactions were scanned.
func (ix *Index) Keys() []Fingerprint {
	return append([]Fingerprint(nil), ix.keys...)
}

// Lookup returns the candidate for fp.
func (ix *Index) Lookup(fp Fingerprint) (Candidate, bool) {
	c, ok := ix.entries[fp]
	return c, ok
}

// Contains reports whether fp is indexed.
func (ix *Index) Contains(fp Fingerprint) bool {
	_, ok := ix.entries[fp]
	return ok
}

// CandidateFunc is called for every qualifying transaction as it is indexed.
// A non-nil error aborts the scan.
type CandidateFunc func(Candidate) error

// BuildIndex scans txs for two-way splits whose reimbursement leg matches
// polarity. Transactions of any other shape are skipped. A repeated
// fingerprint aborts the scan.
func BuildIndex(txs []ledger.Transaction, polarity Polarity, check CandidateFunc) (*Index, error) {
	ix := &Index{polarity: polarity, entries: make(map[Fingerprint]Candidate)}
	for _, tx := range txs {
		main, reimb, ok := tx.SplitLegs()
		if !ok || !polarity.matches(reimb.Amount) {
			continue
		}
		fp, err := NewFingerprint(tx.Date, reimb.Amount)
		if err != nil {
			if ie, ok := err.(*IntegrityError); ok {
				ie.TransactionIDs = []string{tx.ID}
			}
			return nil, err
		}
		if prev, dup := ix.entries[fp]; dup {
			return nil, &IntegrityError{
				Kind:           ErrDuplicateFingerprint,
				Fingerprint:    fp,
				TransactionIDs: []string{prev.Transaction.ID, tx.ID},
				Detail:         "cannot tell which " + polarity.String() + " transaction to pair",
			}
		}
		c := Candidate{Fingerprint: fp, Transaction: tx, Main: main, Reimbursement: reimb}
		if check != nil {
			if err := check(c); err != nil {
				return nil, err
			}
		}
		ix.keys = append(ix.keys, fp)
		ix.entries[fp] = c
	}
	return ix, nil
}
