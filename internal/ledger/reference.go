package ledger

import (
	"errors"
	"strings"
)

const (
	settlementAccountName = "bank"
	reimbursementsMarker  = "reimbursements"
)

var (
	ErrNoSettlementAccount     = errors.New("no settlement account named \"Bank\"")
	ErrNoReimbursementPayee    = errors.New("no payee containing \"Reimbursements\"")
	ErrNoReimbursementCategory = errors.New("no category containing \"Reimbursements\"")
)

// IsReimbursementName reports whether name designates the reimbursement leg.
func IsReimbursementName(name string) bool {
	return strings.Contains(strings.ToLower(name), reimbursementsMarker)
}

// References are the ids a mirror needs on the target side.
type References struct {
	SettlementAccountID     string
	ReimbursementPayeeID    string
	ReimbursementCategoryID string
}

// SettlementAccount returns the first open account named "Bank", case-insensitively.
func (b Budget) SettlementAccount() (Account, error) {
	for _, a := range b.Accounts {
		if a.Deleted || a.Closed {
			continue
		}
		if strings.EqualFold(a.Name, settlementAccountName) {
			return a, nil
		}
	}
	return Account{}, ErrNoSettlementAccount
}

// ReimbursementPayee returns the first payee whose name contains "reimbursements".
func (b Budget) ReimbursementPayee() (Payee, error) {
	for _, p := range b.Payees {
		if !p.Deleted && p.Name != "" && IsReimbursementName(p.Name) {
			return p, nil
		}
	}
	return Payee{}, ErrNoReimbursementPayee
}

// ReimbursementCategory returns the first category whose name contains "reimbursements".
func (b Budget) ReimbursementCategory() (Category, error) {
	for _, c := range b.Categories {
		if !c.Deleted && c.Name != "" && IsReimbursementName(c.Name) {
			return c, nil
		}
	}
	return Category{}, ErrNoReimbursementCategory
}

// References resolves all designated reference data, reporting every gap at once.
func (b Budget) References() (References, error) {
	var refs References
	var errs []error
	if a, err := b.SettlementAccount(); err != nil {
		errs = append(errs, err)
	} else {
		refs.SettlementAccountID = a.ID
	}
	if p, err := b.ReimbursementPayee(); err != nil {
		errs = append(errs, err)
	} else {
		refs.ReimbursementPayeeID = p.ID
	}
	if c, err := b.ReimbursementCategory(); err != nil {
		errs = append(errs, err)
	} else {
		refs.ReimbursementCategoryID = c.ID
	}
	return refs, errors.Join(errs...)
}

// LiveSubtransactions drops deleted legs.
func (t Transaction) LiveSubtransactions() []Subtransaction {
	out := make([]Subtransaction, 0, len(t.Subtransactions))
	for _, s := range t.Subtransactions {
		if !s.Deleted {
			out = append(out, s)
		}
	}
	return out
}

// SplitLegs returns the main and reimbursement legs of a two-way split. ok is
// false unless the transaction has exactly two live legs and exactly one of
// them has a payee name containing "reimbursements".
func (t Transaction) SplitLegs() (main, reimbursement Subtransaction, ok bool) {
	if t.Deleted {
		return Subtransaction{}, Subtransaction{}, false
	}
	legs := t.LiveSubtransactions()
	if len(legs) != 2 {
		return Subtransaction{}, Subtransaction{}, false
	}
	first := legs[0].PayeeName != nil && IsReimbursementName(*legs[0].PayeeName)
	second := legs[1].PayeeName != nil && IsReimbursementName(*legs[1].PayeeName)
	switch {
	case first && !second:
		return legs[1], legs[0], true
	case second && !first:
		return legs[0], legs[1], true
	default:
		return Subtransaction{}, Subtransaction{}, false
	}
}
