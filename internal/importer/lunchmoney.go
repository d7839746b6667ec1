package importer

import (
	"io"

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// LunchMoneyParser parses Lunch Money transaction exports.
type LunchMoneyParser struct{}

var lunchMoneyLayout = &layout{
	format: "lunchmoney",
	headers: map[string]string{
		fieldID:          "id",
		fieldDate:        "date",
		fieldPayee:       "payee",
		fieldAmount:      "amount",
		fieldCategory:    "category_name",
		fieldAccount:     "account_display_name",
		fieldTags:        "tags",
		fieldNotes:       "notes",
		fieldPending:     "is_pending",
		fieldHasChildren: "has_children",
		fieldParentID:    "parent_id",
	},
	required:    []string{fieldID, fieldDate, fieldPayee, fieldAmount, fieldCategory, fieldAccount},
	dateLayouts: []string{"2006-01-02", "2006-01-02 15:04:05"},
	tagSep:      ",",
}

// Format returns the parser name.
func (p *LunchMoneyParser) Format() string { return "lunchmoney" }

// Convention reports how amounts are signed: expenses positive.
func (p *LunchMoneyParser) Convention() matcher.Convention { return matcher.DebitPositive }

// Parse reads a Lunch Money CSV.
func (p *LunchMoneyParser) Parse(r io.Reader, opts Options) ([]*model.Transaction, error) {
	return lunchMoneyLayout.parse(r, opts)
}
