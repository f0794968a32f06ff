package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jask/splitsync/internal/ledger"
)

// Ratio is the percentage of a shared expense carried by one party.
type Ratio int

// Validate checks the ratio is a percentage.
func (r Ratio) Validate() error {
	if r < 0 || r > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidRatio, int(r))
	}
	return nil
}

// Complement is the other party's ratio.
func (r Ratio) Complement() Ratio { return 100 - r }

var hundred = decimal.NewFromInt(100)

// ExpectedShare is ratio percent of total, rounded half away from zero to the
// nearest 10 milliunits, the remote ledger's smallest increment.
func ExpectedShare(total ledger.Milliunits, ratio Ratio) ledger.Milliunits {
	share := decimal.NewFromInt(int64(total)).
		Mul(decimal.NewFromInt(int64(ratio))).
		Div(hundred).
		Round(-1)
	return ledger.Milliunits(share.IntPart())
}

// ValidateSplit checks that the reimbursement leg of an original paid with
// payerRatio carries exactly the other party's share of the total.
func ValidateSplit(c Candidate, payerRatio Ratio) error {
	want := ExpectedShare(c.Transaction.Amount, payerRatio.Complement())
	if got := c.Reimbursement.Amount; got != want {
		return &IntegrityError{
			Kind:           ErrSplitMismatch,
			Fingerprint:    c.Fingerprint,
			TransactionIDs: []string{c.Transaction.ID},
			Detail: fmt.Sprintf("expected reimbursement %d (%d%% of %d), found %d",
				want, int(payerRatio.Complement()), c.Transaction.Amount, got),
		}
	}
	return nil
}
