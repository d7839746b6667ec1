package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// ErrNotFound is returned for an unknown dataset or record.
var ErrNotFound = errors.New("not found")

const (
	dateLayout = "2006-01-02"
	tagSep     = "\t"
)

// Store is a SQLite database of datasets.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; the engines are single threaded anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	Name       string
	Format     string
	Convention matcher.Convention
	Records    int
}

// ImportResult reports what Import stored.
type ImportResult struct {
	Stored   int
	Rejected []model.Rejected
}

// Import replaces the contents of dataset with txns. Records without a key,
// or repeating an earlier key, are rejected.
func (s *Store) Import(ctx context.Context, dataset, format string, conv matcher.Convention, txns []*model.Transaction) (*ImportResult, error) {
	res := &ImportResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE dataset = ?`, dataset); err != nil {
			return fmt.Errorf("clearing dataset: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO datasets (name, format, convention) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				format = excluded.format,
				convention = excluded.convention,
				imported_at = CURRENT_TIMESTAMP`,
			dataset, format, conv.String())
		if err != nil {
			return fmt.Errorf("recording dataset: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (
				dataset, key, position, native_id, row_index, date, amount, type,
				payee, account_name, category, tags, notes, pending, has_children,
				parent_id, classification, related_key
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		seen := make(map[string]bool, len(txns))
		for pos, t := range txns {
			key, err := t.Key()
			if err != nil {
				res.Rejected = append(res.Rejected, model.Rejected{Record: t, Err: err})
				continue
			}
			if seen[key] {
				res.Rejected = append(res.Rejected, model.Rejected{Record: t, Err: fmt.Errorf("duplicate record key %q", key)})
				continue
			}
			seen[key] = true

			var rowIndex sql.NullInt64
			if t.HasIndex {
				rowIndex = sql.NullInt64{Int64: int64(t.Index), Valid: true}
			}
			_, err = stmt.ExecContext(ctx,
				dataset, key, pos, t.ID, rowIndex, t.Day().Format(dateLayout), t.Amount.String(), t.Type,
				t.Payee, t.AccountName, t.Category, t.Tags.Join(tagSep), t.Notes, t.Pending, t.HasChildren,
				t.ParentID, string(t.Classification), t.RelatedKey,
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", key, err)
			}
			res.Stored++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing dataset %s: %w", dataset, err)
	}
	return res, nil
}

// Datasets lists stored datasets by name.
func (s *Store) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.name, d.format, d.convention, COUNT(t.key)
		FROM datasets d LEFT JOIN transactions t ON t.dataset = d.name
		GROUP BY d.name ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var conv string
		if err := rows.Scan(&info.Name, &info.Format, &conv, &info.Records); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		if info.Convention, err = matcher.ParseConvention(conv); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", info.Name, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Dataset returns a handle on one dataset. The dataset is not checked until
// the handle is used.
func (s *Store) Dataset(name string) *Dataset {
	return &Dataset{store: s, name: name}
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
