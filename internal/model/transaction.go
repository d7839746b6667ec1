package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/id"
)

// ErrNoStableIdentifier is returned for records with neither a native id nor a
// positional index.
var ErrNoStableIdentifier = errors.New("record has no stable identifier")

// Classification is the reconciliation state attached to a record.
type Classification string

const (
	Unclassified Classification = ""
	Duplicate    Classification = "Duplicate"
	Match        Classification = "Match"
	Investigate  Classification = "Investigate"
	NotDuplicate Classification = "NotDuplicate"
)

// Transaction is one record of a dataset.
type Transaction struct {
	ID          string    // native id, empty when the source has none
	Index       int       // positional index within the dataset, valid when HasIndex
	HasIndex    bool      //nolint:revive
	Date        time.Time // calendar date, time of day ignored
	Amount      decimal.Decimal
	Type        string // "debit" / "credit" for typed sources, empty otherwise
	Payee       string
	AccountName string
	Category    string
	Tags        Tags
	Notes       string

	Pending     bool
	HasChildren bool
	ParentID    string

	Classification Classification
	RelatedKey     string // key of the counterpart in the other dataset
}

// Key returns the stable identity of the record: its native id when present,
// otherwise its positional index.
func (t *Transaction) Key() (string, error) {
	if t.ID != "" {
		return t.ID, nil
	}
	if t.HasIndex {
		return id.FormatPositional(t.Index), nil
	}
	return "", ErrNoStableIdentifier
}

// MustKey is Key for records already known to be identifiable.
func (t *Transaction) MustKey() string {
	k, err := t.Key()
	if err != nil {
		panic(err)
	}
	return k
}

// Day returns the record date truncated to midnight UTC.
func (t *Transaction) Day() time.Time {
	return Day(t.Date)
}

// String renders a short one-line description for logs and prompts.
func (t *Transaction) String() string {
	key, err := t.Key()
	if err != nil {
		key = "?"
	}
	amount := FormatAmount(t.Amount)
	if t.Type != "" {
		amount += " " + t.Type
	}
	return fmt.Sprintf("[%s] %s %s %q %s", key, t.Date.Format("2006-01-02"), amount, t.Payee, t.AccountName)
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatAmount renders d with at least two decimal places. Finer precision
// is kept as is, never rounded away.
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	s := d.String()
	if i := strings.IndexByte(s, '.'); i < 0 || len(s)-i-1 < 2 {
		return d.StringFixed(2)
	}
	return s
}

// CleanText removes embedded newlines and surrounding whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// Link is a cross-reference between a classified record and its counterpart.
type Link struct {
	SourceKey     string
	ComparisonKey string
}

// WriteError reports a sink rejecting a persist call for one record.
type WriteError struct {
	Key   string
	Field string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("persisting %s for record %s: %v", e.Field, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Rejected reports a record excluded from a run.
type Rejected struct {
	Record *Transaction
	Err    error
}
