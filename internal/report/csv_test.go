package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func readAll(t *testing.T, b *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(b).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteAnalyzed(t *testing.T) {
	txns := []*model.Transaction{
		{ID: "1", Date: date(2024, 3, 1), Amount: dec("4"), AccountName: "Savings"},
		{ID: "2", Date: date(2024, 3, 1), Amount: dec("5"), AccountName: "checking", Classification: model.Investigate},
		{
			ID: "3", Date: date(2024, 3, 10), Amount: dec("100"), AccountName: "Checking",
			Payee: "Corner Cafe", Tags: model.Tags{"work", "travel"}, Notes: "lunch, team",
			Classification: model.Duplicate, RelatedKey: "0",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalyzed(&buf, txns))
	rows := readAll(t, &buf)

	require.Len(t, rows, 4)
	assert.Equal(t, strings.Split(Header, ","), rows[0])
	assert.Equal(t, []string{"3", "2024-03-10", "Corner Cafe", "100.00", "", "", "Checking", "travel,work", "lunch, team", "Duplicate", "0"}, rows[1])
	assert.Equal(t, "2", rows[2][colKey])
	assert.Equal(t, "Investigate", rows[2][colAction])
	assert.Equal(t, "1", rows[3][colKey])
	assert.Empty(t, rows[3][colAction])
}

func TestMarshalRow_Positional(t *testing.T) {
	row := MarshalRow(&model.Transaction{Index: 12, HasIndex: true, Date: date(2024, 1, 2), Amount: dec("-1.5"), Type: "credit"})
	assert.Equal(t, "12", row[colKey])
	assert.Equal(t, "-1.50", row[colAmount])
	assert.Equal(t, "credit", row[colType])
}

func TestNames(t *testing.T) {
	assert.Equal(t, "lm_analyzed_transactions.csv", AnalyzedName("lm"))
	assert.Equal(t, "marked_as_duplicate_2024-03-10.csv", DeletedName(date(2024, 3, 10)))
}

func TestWriteMint_ReadsBackWithMintParser(t *testing.T) {
	txns := []*model.Transaction{
		{ID: "1", Date: date(2024, 3, 10), Amount: dec("19.99"), Payee: "Cafe", AccountName: "Card", Tags: model.Tags{"work", "food"}},
		{ID: "2", Date: date(2024, 3, 9), Amount: dec("-250"), Payee: "Refund", AccountName: "Card", Category: "Income"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMint(&buf, txns, matcher.DebitPositive))

	back, err := (&importer.MintParser{}).Parse(&buf, importer.Options{})
	require.NoError(t, err)
	require.Len(t, back, 2)

	assert.Equal(t, "debit", back[0].Type)
	assert.Equal(t, "19.99", back[0].Amount.StringFixed(2))
	assert.Equal(t, model.Tags{"food", "work"}, back[0].Tags)
	assert.Equal(t, "credit", back[1].Type)
	assert.Equal(t, "250.00", back[1].Amount.StringFixed(2))
	assert.Equal(t, "Income", back[1].Category)

	// Same flow on both sides.
	for i := range txns {
		assert.True(t, matcher.Normalize(txns[i], matcher.DebitPositive).Equal(matcher.Normalize(back[i], matcher.Typed)))
	}
}

func TestMarshalRow_KeepsSubCentAmounts(t *testing.T) {
	row := MarshalRow(&model.Transaction{ID: "7", Date: date(2024, 1, 2), Amount: dec("0.005")})
	assert.Equal(t, "0.005", row[colAmount])
}

func TestWriteMint_MultiWordLabels(t *testing.T) {
	txns := []*model.Transaction{
		{ID: "1", Date: date(2024, 3, 10), Amount: dec("12.345"), Payee: "Cafe", AccountName: "Card", Tags: model.Tags{"team lunch", "work"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMint(&buf, txns, matcher.DebitPositive))

	back, err := (&importer.MintParser{}).Parse(&buf, importer.Options{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, model.Tags{"team-lunch", "work"}, back[0].Tags)
	assert.True(t, back[0].Amount.Equal(dec("12.345")))
}
