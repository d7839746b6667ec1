package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Parser converts an export CSV into transactions.
type Parser interface {
	Parse(r io.Reader, opts Options) ([]*model.Transaction, error)
	Format() string
	Convention() matcher.Convention
}

// Options adjust parsing.
type Options struct {
	Account string // overrides the account name of every record
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in an import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&LunchMoneyParser{})
	r.Register(&MintParser{})
	r.Register(&ChaseParser{})
	return r
}

// processedDir is the subdirectory imported files are moved to.
const processedDir = "processed"

// Scan returns the CSV files directly inside dir.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// PrepareOptions control which records Prepare keeps.
type PrepareOptions struct {
	KeepPending      bool
	KeepSplitParents bool
}

// Prepare drops records that must not take part in matching: pending ones,
// which have not settled, and parents of split transactions, whose children
// carry the real amounts. A split parent with no child present is an error.
func Prepare(txns []*model.Transaction, opts PrepareOptions) ([]*model.Transaction, error) {
	children := make(map[string]bool)
	for _, t := range txns {
		if t.ParentID != "" {
			children[t.ParentID] = true
		}
	}

	var out []*model.Transaction
	for _, t := range txns {
		if t.Pending && !opts.KeepPending {
			continue
		}
		if t.HasChildren && !opts.KeepSplitParents {
			if !children[t.ID] {
				return nil, fmt.Errorf("split parent %s has no children in the dataset", t)
			}
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
