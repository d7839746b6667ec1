package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Dataset reads and updates the records of one dataset.
type Dataset struct {
	store *Store
	name  string
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// DateRange bounds a fetch. Zero ends are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Info returns the stored description of the dataset.
func (d *Dataset) Info(ctx context.Context) (DatasetInfo, error) {
	info := DatasetInfo{Name: d.name}
	var conv string
	err := d.store.db.QueryRowContext(ctx, `
		SELECT format, convention, (SELECT COUNT(*) FROM transactions WHERE dataset = ?)
		FROM datasets WHERE name = ?`, d.name, d.name).Scan(&info.Format, &conv, &info.Records)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("dataset %s: %w", d.name, ErrNotFound)
	}
	if err != nil {
		return info, fmt.Errorf("reading dataset %s: %w", d.name, err)
	}
	if info.Convention, err = matcher.ParseConvention(conv); err != nil {
		return info, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return info, nil
}

// Fetch returns the records dated inside r, in import order.
func (d *Dataset) Fetch(ctx context.Context, r DateRange) ([]*model.Transaction, error) {
	if _, err := d.Info(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT native_id, row_index, date, amount, type, payee, account_name,
			category, tags, notes, pending, has_children, parent_id,
			classification, related_key
		FROM transactions WHERE dataset = ?`
	args := []any{d.name}
	if !r.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, model.Day(r.From).Format(dateLayout))
	}
	if !r.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, model.Day(r.To).Format(dateLayout))
	}
	query += ` ORDER BY position`

	rows, err := d.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset %s: %w", d.name, err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("fetching dataset %s: %w", d.name, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*model.Transaction, error) {
	var (
		t        model.Transaction
		rowIndex sql.NullInt64
		date     string
		amount   string
		tags     string
		class    string
	)
	err := rows.Scan(&t.ID, &rowIndex, &date, &amount, &t.Type, &t.Payee, &t.AccountName,
		&t.Category, &tags, &t.Notes, &t.Pending, &t.HasChildren, &t.ParentID,
		&class, &t.RelatedKey)
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if rowIndex.Valid {
		t.Index = int(rowIndex.Int64)
		t.HasIndex = true
	}
	if t.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("parsing stored date %q: %w", date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing stored amount %q: %w", amount, err)
	}
	t.Tags = model.ParseTags(tags, tagSep)
	t.Classification = model.Classification(class)
	return &t, nil
}

// PersistClassification records the classification of one record and the key
// of its counterpart.
func (d *Dataset) PersistClassification(ctx context.Context, key string, class model.Classification, related string) error {
	return d.update(ctx, key, `classification = ?, related_key = ?`, string(class), related)
}

// PersistTags replaces the tag set of one record.
func (d *Dataset) PersistTags(ctx context.Context, key string, tags model.Tags) error {
	return d.update(ctx, key, `tags = ?`, tags.Join(tagSep))
}

var fieldColumns = map[string]string{
	model.FieldPayee:    "payee",
	model.FieldCategory: "category",
	model.FieldNotes:    "notes",
}

// PersistField updates one text field of one record.
func (d *Dataset) PersistField(ctx context.Context, key, field, value string) error {
	col, ok := fieldColumns[strings.ToLower(field)]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	return d.update(ctx, key, col+` = ?`, value)
}

func (d *Dataset) update(ctx context.Context, key, set string, args ...any) error {
	args = append(args, d.name, key)
	res, err := d.store.db.ExecContext(ctx,
		`UPDATE transactions SET `+set+`, updated_at = CURRENT_TIMESTAMP WHERE dataset = ? AND key = ?`,
		args...)
	if err != nil {
		return fmt.Errorf("updating record %s in %s: %w", key, d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record %s in %s: %w", key, d.name, err)
	}
	if n == 0 {
		return fmt.Errorf("record %s in %s: %w", key, d.name, ErrNotFound)
	}
	return nil
}
