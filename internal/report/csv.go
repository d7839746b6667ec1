// Package report writes the CSV files a run leaves behind for review.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Header is the CSV header of an analyzed transactions file.
const Header = "key,date,payee,amount,type,category,account_name,tags,notes,action,related_id"

const (
	numFields    = 11
	dateFormat   = "2006-01-02"
	colKey       = 0
	colDate      = 1
	colPayee     = 2
	colAmount    = 3
	colType      = 4
	colCategory  = 5
	colAccount   = 6
	colTags      = 7
	colNotes     = 8
	colAction    = 9
	colRelatedID = 10
)

// AnalyzedName is the file name of the analyzed output for dataset.
func AnalyzedName(dataset string) string {
	return dataset + "_analyzed_transactions.csv"
}

// DeletedName is the file name listing the records marked as duplicates on day.
func DeletedName(day time.Time) string {
	return "marked_as_duplicate_" + day.Format(dateFormat) + ".csv"
}

// Sort orders records by account, then newest first.
func Sort(txns []*model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		ai, aj := accounts.Normalize(txns[i].AccountName), accounts.Normalize(txns[j].AccountName)
		if ai != aj {
			return ai < aj
		}
		return txns[i].Day().After(txns[j].Day())
	})
}

// WriteAnalyzed writes records with their action and related id, including
// the header. The slice is sorted in place.
func WriteAnalyzed(w io.Writer, txns []*model.Transaction) error {
	Sort(txns)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txns {
		if err := cw.Write(MarshalRow(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalRow converts a record to an analyzed CSV row.
func MarshalRow(t *model.Transaction) []string {
	row := make([]string, numFields)
	if key, err := t.Key(); err == nil {
		row[colKey] = key
	}
	row[colDate] = t.Date.Format(dateFormat)
	row[colPayee] = t.Payee
	row[colAmount] = model.FormatAmount(t.Amount)
	row[colType] = t.Type
	row[colCategory] = t.Category
	row[colAccount] = t.AccountName
	row[colTags] = t.Tags.Join(",")
	row[colNotes] = t.Notes
	row[colAction] = string(t.Classification)
	row[colRelatedID] = t.RelatedKey
	return row
}

// MintHeader is the header Mint exports carry.
const MintHeader = "Date,Description,Original Description,Amount,Transaction Type,Category,Account Name,Labels,Notes"

// WriteMint writes records in Mint's export layout so they can be appended
// to a Mint history. conv is the sign convention the records use.
func WriteMint(w io.Writer, txns []*model.Transaction, conv matcher.Convention) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(MintHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txns {
		flow := matcher.Normalize(t, conv)
		row := []string{
			t.Date.Format(dateFormat),
			t.Payee,
			"",
			model.FormatAmount(flow.Magnitude),
			flow.Direction.String(),
			t.Category,
			t.AccountName,
			mintLabels(t.Tags),
			t.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// mintLabels joins tags the way Mint separates labels. Mint labels cannot hold
// spaces, so whitespace inside a tag becomes a dash.
func mintLabels(tags model.Tags) string {
	labels := make([]string, len(tags))
	for i, tag := range tags {
		labels[i] = strings.Join(strings.Fields(tag), "-")
	}
	sort.Strings(labels)
	return strings.Join(labels, " ")
}
