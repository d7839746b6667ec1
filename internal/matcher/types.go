package matcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

// ErrInvalidWindow is returned for a negative lookback or lookahead.
var ErrInvalidWindow = errors.New("invalid window configuration")

// Window is the inclusive date range [date-Lookback, date+Lookahead] in days.
type Window struct {
	Lookback  int
	Lookahead int
}

// DefaultWindow covers settlement dates one day before to a week after.
func DefaultWindow() Window {
	return Window{Lookback: 1, Lookahead: 7}
}

// Validate rejects negative bounds.
func (w Window) Validate() error {
	if w.Lookback < 0 {
		return fmt.Errorf("%w: lookback %d is negative", ErrInvalidWindow, w.Lookback)
	}
	if w.Lookahead < 0 {
		return fmt.Errorf("%w: lookahead %d is negative", ErrInvalidWindow, w.Lookahead)
	}
	return nil
}

// Contains reports whether d falls inside the window around origin. Only
// calendar dates are compared.
func (w Window) Contains(origin, d time.Time) bool {
	o := model.Day(origin)
	x := model.Day(d)
	return !x.Before(o.AddDate(0, 0, -w.Lookback)) && !x.After(o.AddDate(0, 0, w.Lookahead))
}

// Convention describes how a dataset encodes money in versus money out.
type Convention int

const (
	// DebitPositive: outflows are positive, inflows negative (Lunch Money).
	DebitPositive Convention = iota
	// DebitNegative: outflows are negative, inflows positive (bank exports).
	DebitNegative
	// Typed: amounts are magnitudes and a separate debit/credit flag gives the direction (Mint).
	Typed
)

func (c Convention) String() string {
	switch c {
	case DebitPositive:
		return "debit-positive"
	case DebitNegative:
		return "debit-negative"
	case Typed:
		return "typed"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// ParseConvention is the inverse of Convention.String.
func ParseConvention(s string) (Convention, error) {
	for _, c := range []Convention{DebitPositive, DebitNegative, Typed} {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown sign convention %q", s)
}

// Direction is money out (debit) or money in (credit).
type Direction int

const (
	Debit Direction = iota
	Credit
)

func (d Direction) String() string {
	if d == Credit {
		return "credit"
	}
	return "debit"
}

// Flow is an amount reduced to magnitude plus direction.
type Flow struct {
	Magnitude decimal.Decimal
	Direction Direction
}

// Equal compares two flows exactly. A zero magnitude matches in either direction.
func (f Flow) Equal(other Flow) bool {
	if !f.Magnitude.Equal(other.Magnitude) {
		return false
	}
	return f.Magnitude.IsZero() || f.Direction == other.Direction
}

// Normalize converts a record amount under convention c to a Flow.
func Normalize(t *model.Transaction, c Convention) Flow {
	mag := t.Amount.Abs()
	switch c {
	case Typed:
		switch strings.ToLower(strings.TrimSpace(t.Type)) {
		case "credit":
			return Flow{Magnitude: mag, Direction: Credit}
		case "debit":
			return Flow{Magnitude: mag, Direction: Debit}
		}
		// Untyped row in a typed dataset: fall back to the sign.
		if t.Amount.IsNegative() {
			return Flow{Magnitude: mag, Direction: Credit}
		}
		return Flow{Magnitude: mag, Direction: Debit}
	case DebitNegative:
		if t.Amount.IsPositive() {
			return Flow{Magnitude: mag, Direction: Credit}
		}
		return Flow{Magnitude: mag, Direction: Debit}
	default:
		if t.Amount.IsNegative() {
			return Flow{Magnitude: mag, Direction: Credit}
		}
		return Flow{Magnitude: mag, Direction: Debit}
	}
}
