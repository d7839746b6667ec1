package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadAliases reads an account name map. The header row holds canonical account
// names; the cells below each header list the spellings that account may take in
// another dataset. Columns may have different lengths; empty cells are ignored.
//
//	Chase Checking,Amex
//	CHK...1234,AMEX Blue
//	Chase Chk,
func ReadAliases(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading account name map CSV: %w", err)
	}

	if len(records) == 0 {
		return NewTable(nil), nil
	}

	header := records[0]
	var names []string
	first := make(map[string]string, len(header)) // normalized -> first spelling
	columns := make(map[string][]string, len(header))
	for col, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d: empty account name in header", col+1)
		}
		if f, ok := first[Normalize(name)]; ok {
			name = f
		} else {
			first[Normalize(name)] = name
			names = append(names, name)
		}
		for _, rec := range records[1:] {
			if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
				columns[name] = append(columns[name], rec[col])
			}
		}
	}
	return newTable(names, columns), nil
}

// WriteAliases writes a Table in the column-oriented layout ReadAliases accepts.
func WriteAliases(w io.Writer, t *Table) error {
	if t == nil {
		return nil
	}
	cw := csv.NewWriter(w)

	if err := cw.Write(t.names); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	depth := 0
	for _, name := range t.names {
		depth = max(depth, len(t.spellings[Normalize(name)]))
	}
	for i := 0; i < depth; i++ {
		row := make([]string, len(t.names))
		for col, name := range t.names {
			if sp := t.spellings[Normalize(name)]; i < len(sp) {
				row[col] = sp[i]
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
