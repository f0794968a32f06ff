package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// Integrity faults. Any of these aborts the whole run before anything is written.
var (
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")
	ErrMalformedFingerprint = errors.New("malformed fingerprint")
	ErrSplitMismatch        = errors.New("split amount does not match ratio")
	ErrInvariant            = errors.New("internal invariant violated")
)

// ErrInvalidRatio is returned for a split ratio outside 0-100.
var ErrInvalidRatio = errors.New("split ratio must be between 0 and 100")

// IntegrityError identifies the transactions behind an integrity fault.
type IntegrityError struct {
	Kind           error
	Fingerprint    Fingerprint
	TransactionIDs []string
	Detail         string
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Fingerprint != "" {
		fmt.Fprintf(&b, " at %s", e.Fingerprint)
	}
	if len(e.TransactionIDs) > 0 {
		fmt.Fprintf(&b, " (transactions %s)", strings.Join(e.TransactionIDs, ", "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() error { return e.Kind }

// IsIntegrity reports whether err is an integrity fault.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
