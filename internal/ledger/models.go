package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and fingerprint rendering of a calendar day.
const DateLayout = "2006-01-02"

// Milliunits is a signed amount in the remote ledger's minor unit. Negative is an outflow.
type Milliunits int64

// Date is a calendar day with no time component.
type Date struct {
	t time.Time
}

// NewDate returns the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string { return d.t.Format(DateLayout) }
func (d Date) IsZero() bool { return d.t.IsZero() }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Account is a budget account.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Closed  bool   `json:"closed"`
	Deleted bool   `json:"deleted"`
}

// Payee is a payee in one budget's namespace.
type Payee struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// Category is a category in one budget's namespace.
type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// Subtransaction is one leg of a split transaction. Payee and category names
// are resolved by the remote ledger.
type Subtransaction struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	Amount        Milliunits `json:"amount"`
	Memo          *string    `json:"memo"`
	PayeeID       *string    `json:"payee_id"`
	PayeeName     *string    `json:"payee_name"`
	CategoryID    *string    `json:"category_id"`
	CategoryName  *string    `json:"category_name"`
	Deleted       bool       `json:"deleted"`
}

// Transaction is a ledger transaction as read from the remote ledger.
type Transaction struct {
	ID              string           `json:"id"`
	Date            Date             `json:"date"`
	Amount          Milliunits       `json:"amount"`
	Memo            *string          `json:"memo"`
	Cleared         string           `json:"cleared"`
	Approved        bool             `json:"approved"`
	FlagColor       *string          `json:"flag_color"`
	AccountID       string           `json:"account_id"`
	AccountName     string           `json:"account_name"`
	PayeeID         *string          `json:"payee_id"`
	PayeeName       *string          `json:"payee_name"`
	CategoryID      *string          `json:"category_id"`
	CategoryName    *string          `json:"category_name"`
	Deleted         bool             `json:"deleted"`
	Subtransactions []Subtransaction `json:"subtransactions"`
}

// Budget is one party's ledger reference data, in the order the remote returned it.
type Budget struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Accounts   []Account  `json:"accounts"`
	Payees     []Payee    `json:"payees"`
	Categories []Category `json:"categories"`
}

// SubtransactionPayload is one leg of a transaction being created.
type SubtransactionPayload struct {
	Amount     Milliunits `json:"amount"`
	PayeeID    *string    `json:"payee_id"`
	CategoryID *string    `json:"category_id"`
	Memo       *string    `json:"memo,omitempty"`
}

// MirrorPayload is the transaction created in the target ledger for a shared expense.
type MirrorPayload struct {
	AccountID       string                  `json:"account_id"`
	Date            Date                    `json:"date"`
	Amount          Milliunits              `json:"amount"`
	Memo            string                  `json:"memo"`
	Cleared         string                  `json:"cleared"`
	Approved        bool                    `json:"approved"`
	FlagColor       string                  `json:"flag_color,omitempty"`
	Subtransactions []SubtransactionPayload `json:"subtransactions"`
}

// TransactionPatch marks an existing transaction, e.g. an original that has been mirrored.
type TransactionPatch struct {
	ID        string `json:"id"`
	FlagColor string `json:"flag_color"`
}

// Str returns a pointer to s, or nil for the empty string.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *s or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
