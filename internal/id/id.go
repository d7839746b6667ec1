package id

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatPositional returns the identity used for a record that only has a
// positional index, e.g. "12".
func FormatPositional(index int) string {
	return strconv.Itoa(index)
}

// NewRunID returns a fresh identifier for one reconciliation run.
func NewRunID() string {
	return uuid.NewString()
}

// ShortRunID returns the first block of a run id for display.
func ShortRunID(runID string) string {
	if i := strings.IndexByte(runID, '-'); i > 0 {
		return runID[:i]
	}
	return runID
}
