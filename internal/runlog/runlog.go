// Package runlog keeps an append-only CSV record of every decision a run
// makes, so a reviewer can see what happened without rerunning it.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Actions written to the log.
const (
	ActionMatched      = "matched"
	ActionInvestigate  = "investigate"
	ActionDeleted      = "marked_duplicate"
	ActionNotDuplicate = "marked_not_duplicate"
	ActionFieldsSynced = "fields_synced"
	ActionWriteFailed  = "write_failed"
	ActionRejected     = "rejected"
	ActionImported     = "imported"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp  time.Time
	RunID      string
	Command    string
	Action     string
	Dataset    string
	Key        string
	RelatedKey string
	Details    string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,run_id,command,action,dataset,key,related_key,details"

const (
	numFields     = 8
	logDir        = "logs"
	logFile       = "logs/run-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colCommand    = 2
	colAction     = 3
	colDataset    = 4
	colKey        = 5
	colRelatedKey = 6
	colDetails    = 7
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colCommand] = e.Command
	row[colAction] = e.Action
	row[colDataset] = e.Dataset
	row[colKey] = e.Key
	row[colRelatedKey] = e.RelatedKey
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		RunID:      record[colRunID],
		Command:    record[colCommand],
		Action:     record[colAction],
		Dataset:    record[colDataset],
		Key:        record[colKey],
		RelatedKey: record[colRelatedKey],
		Details:    record[colDetails],
	}, nil
}

// Append writes entries to <root>/logs/run-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <root>/logs/run-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Recorder collects the entries of one run.
type Recorder struct {
	RunID   string
	Command string
	Now     func() time.Time

	entries []Entry
}

// NewRecorder creates a Recorder stamping entries with runID and command.
func NewRecorder(runID, command string) *Recorder {
	return &Recorder{RunID: runID, Command: command, Now: time.Now}
}

// Add records one decision.
func (r *Recorder) Add(action, dataset, key, related, details string) {
	r.entries = append(r.entries, Entry{
		Timestamp:  r.Now().UTC(),
		RunID:      r.RunID,
		Command:    r.Command,
		Action:     action,
		Dataset:    dataset,
		Key:        key,
		RelatedKey: related,
		Details:    details,
	})
}

// WriteFailures records sink failures.
func (r *Recorder) WriteFailures(dataset string, errs []*model.WriteError) {
	for _, we := range errs {
		r.Add(ActionWriteFailed, dataset, we.Key, "", we.Error())
	}
}

// Rejections records records excluded from a run.
func (r *Recorder) Rejections(dataset string, rejected []model.Rejected) {
	for _, rj := range rejected {
		r.Add(ActionRejected, dataset, "", "", fmt.Sprintf("%s: %v", rj.Record, rj.Err))
	}
}

// Flush appends the collected entries to the log under root and clears them.
func (r *Recorder) Flush(root string) error {
	if err := Append(root, r.entries); err != nil {
		return err
	}
	r.entries = nil
	return nil
}
