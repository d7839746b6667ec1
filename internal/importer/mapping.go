package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Canonical record fields a column can map to.
const (
	fieldID          = "id"
	fieldDate        = "date"
	fieldPayee       = "payee"
	fieldAmount      = "amount"
	fieldType        = "type"
	fieldCategory    = "category"
	fieldAccount     = "account"
	fieldTags        = "tags"
	fieldNotes       = "notes"
	fieldPending     = "pending"
	fieldHasChildren = "has_children"
	fieldParentID    = "parent_id"
)

// layout describes one export format: which header feeds which field and
// how dates and tags are written.
type layout struct {
	format      string
	headers     map[string]string // field -> column header
	required    []string
	dateLayouts []string
	tagSep      string
	positional  bool // no native ids; records are keyed by row
}

// columns is a layout resolved against a concrete header row.
type columns map[string]int

func (l *layout) resolve(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(columns, len(l.headers))
	for field, name := range l.headers {
		if i, ok := index[strings.ToLower(name)]; ok {
			cols[field] = i
		}
	}
	for _, field := range l.required {
		if _, ok := cols[field]; !ok {
			return nil, fmt.Errorf("missing column %q", l.headers[field])
		}
	}
	return cols, nil
}

func (c columns) value(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return model.CleanText(row[i])
}

func (l *layout) parse(r io.Reader, opts Options) ([]*model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", l.format, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := l.resolve(records[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV header: %w", l.format, err)
	}

	var txns []*model.Transaction
	for i, rec := range records[1:] {
		txn, err := l.parseRow(cols, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if l.positional {
			txn.Index = i
			txn.HasIndex = true
		}
		if opts.Account != "" {
			txn.AccountName = opts.Account
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (l *layout) parseRow(cols columns, row []string) (*model.Transaction, error) {
	rawDate := cols.value(row, fieldDate)
	date, err := parseDate(rawDate, l.dateLayouts)
	if err != nil {
		return nil, err
	}

	rawAmount := cols.value(row, fieldAmount)
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	pending, err := parseBool(cols.value(row, fieldPending))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.headers[fieldPending], err)
	}
	hasChildren, err := parseBool(cols.value(row, fieldHasChildren))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.headers[fieldHasChildren], err)
	}

	return &model.Transaction{
		ID:          cols.value(row, fieldID),
		Date:        date,
		Amount:      amount,
		Type:        strings.ToLower(cols.value(row, fieldType)),
		Payee:       cols.value(row, fieldPayee),
		AccountName: cols.value(row, fieldAccount),
		Category:    cols.value(row, fieldCategory),
		Tags:        model.ParseTags(cols.value(row, fieldTags), l.tagSep),
		Notes:       cols.value(row, fieldNotes),
		Pending:     pending,
		HasChildren: hasChildren,
		ParentID:    cols.value(row, fieldParentID),
	}, nil
}

func parseDate(s string, layouts []string) (time.Time, error) {
	for _, f := range layouts {
		if d, err := time.Parse(f, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: expected one of %s", s, strings.Join(layouts, ", "))
}

func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer(",", "", "$", "").Replace(s)
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(s))
}
