package importer

import (
	"io"

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports. Chase rows carry no
// account name, so callers usually pass one in Options.
type ChaseParser struct{}

var chaseLayout = &layout{
	format: "chase",
	headers: map[string]string{
		fieldDate:   "Posting Date",
		fieldPayee:  "Description",
		fieldAmount: "Amount",
	},
	required:    []string{fieldDate, fieldPayee, fieldAmount},
	dateLayouts: []string{"01/02/2006"},
	positional:  true,
}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Convention reports how amounts are signed: debits negative.
func (p *ChaseParser) Convention() matcher.Convention { return matcher.DebitNegative }

// Parse reads a Chase CSV.
func (p *ChaseParser) Parse(r io.Reader, opts Options) ([]*model.Transaction, error) {
	return chaseLayout.parse(r, opts)
}
