package importer

import (
	"io"

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// MintParser parses Mint transaction exports. Amounts are magnitudes with
// the direction in "Transaction Type"; rows have no ids.
type MintParser struct{}

var mintLayout = &layout{
	format: "mint",
	headers: map[string]string{
		fieldDate:     "Date",
		fieldPayee:    "Description",
		fieldAmount:   "Amount",
		fieldType:     "Transaction Type",
		fieldCategory: "Category",
		fieldAccount:  "Account Name",
		fieldTags:     "Labels",
		fieldNotes:    "Notes",
	},
	required: []string{fieldDate, fieldPayee, fieldAmount, fieldType, fieldAccount},
	// Mint writes ISO dates; a file saved again by a spreadsheet gets the
	// short US form.
	dateLayouts: []string{"2006-01-02", "1/2/06", "01/02/2006", "1/2/2006"},
	tagSep:      " ",
	positional:  true,
}

// Format returns the parser name.
func (p *MintParser) Format() string { return "mint" }

// Convention reports how amounts are signed: by type column.
func (p *MintParser) Convention() matcher.Convention { return matcher.Typed }

// Parse reads a Mint CSV.
func (p *MintParser) Parse(r io.Reader, opts Options) ([]*model.Transaction, error) {
	return mintLayout.parse(r, opts)
}
