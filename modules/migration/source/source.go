// Package source reads legacy extract files as a lazy, finite stream of raw
// records. A stream is not restartable; re-opening the file yields a fresh
// one. CSV is the primary format; .xlsx workbooks (Access exports) are
// supported through the same contract.
package source

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Record is one data row, addressable by header column name. Values are
// aligned to the header; columns missing from a short row read as "".
type Record struct {
	Line   int
	header map[string]int
	cells  []string
}

// Get returns the raw cell under the named column, or "" when the row is
// short or the column is absent.
func (r Record) Get(name string) string {
	i, ok := r.header[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

// Cells returns the raw cell values padded to header width, in file column
// order. Reject files use this to mirror the input layout.
func (r Record) Cells(width int) []string {
	out := make([]string, width)
	copy(out, r.cells)
	return out
}

// RowError marks a row-level structural failure (bad quoting, invalid
// encoding). The stream continues past it; the caller records a reject.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("file parse error at line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Rows is a stream of records from one extract file.
type Rows interface {
	// Read returns the next record. It returns io.EOF at end of stream, a
	// *RowError for a recoverable row failure, and any other error when the
	// stream cannot continue.
	Read() (Record, error)
	// Header returns the validated header columns in file order.
	Header() []string
	Close() error
}

// Open opens an extract file and validates its header against the required
// and allowed column sets. The reader is chosen by file extension.
func Open(path string, required, allowed []string) (Rows, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return openXLSX(path, required, allowed)
	}
	return openCSV(path, required, allowed)
}

func validateHeader(header []string, required, allowed []string) error {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	for _, req := range required {
		if _, ok := have[req]; !ok {
			return fmt.Errorf("missing required header column: %s", req)
		}
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	for _, h := range header {
		if _, ok := allowedSet[h]; !ok {
			return fmt.Errorf("unexpected header column: %s", h)
		}
	}
	return nil
}

func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, name := range header {
		m[name] = i
	}
	return m
}
