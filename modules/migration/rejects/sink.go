// Package rejects accumulates rows that could not be imported and writes
// them back out as CSV files an operator can hand-correct and re-feed. One
// reject file per source file, mirroring the input columns plus a reason.
package rejects

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smccd/doorcard-data/modules/migration/domain"
)

// ReasonColumn is appended after the source columns in every reject file.
const ReasonColumn = "_reject_reason"

type Sink struct {
	headers map[string][]string
	byFile  map[string][]domain.Reject
	order   []string
	total   int
}

func NewSink() *Sink {
	return &Sink{
		headers: make(map[string][]string),
		byFile:  make(map[string][]domain.Reject),
	}
}

// SetHeader records the column layout of a source file so its reject file
// can mirror it. Safe to call again with the same file.
func (s *Sink) SetHeader(sourceFile string, header []string) {
	s.headers[sourceFile] = append([]string(nil), header...)
}

// Add records one rejected row. Cells should be the raw input cells in file
// column order (possibly empty for rows that never parsed).
func (s *Sink) Add(sourceFile string, line int, cells []string, reason string) {
	if _, seen := s.byFile[sourceFile]; !seen {
		s.order = append(s.order, sourceFile)
	}
	s.byFile[sourceFile] = append(s.byFile[sourceFile], domain.Reject{
		SourceFile: sourceFile,
		Line:       line,
		Columns:    append([]string(nil), cells...),
		Reason:     reason,
	})
	s.total++
}

// Total returns the number of rejects accumulated across all source files.
func (s *Sink) Total() int { return s.total }

// CountFor returns the number of rejects for one source file.
func (s *Sink) CountFor(sourceFile string) int { return len(s.byFile[sourceFile]) }

// All returns every reject in the order recorded, grouped by source file.
func (s *Sink) All() []domain.Reject {
	out := make([]domain.Reject, 0, s.total)
	for _, file := range s.order {
		out = append(out, s.byFile[file]...)
	}
	return out
}

// WriteFiles serializes the accumulated rejects into dir, one CSV per source
// file, and returns the paths written. No files are written when there are
// no rejects.
func (s *Sink) WriteFiles(dir string) ([]string, error) {
	if s.total == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	var paths []string
	for _, file := range s.order {
		// reject files are always CSV, whatever the source format was
		name := strings.TrimSuffix(file, filepath.Ext(file)) + ".csv"
		path := filepath.Join(dir, name)
		if err := s.writeOne(path, file); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Sink) writeOne(path, sourceFile string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := append(append([]string(nil), s.headers[sourceFile]...), ReasonColumn)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	width := len(s.headers[sourceFile])
	for _, rej := range s.byFile[sourceFile] {
		cells := make([]string, width)
		copy(cells, rej.Columns)
		if err := w.Write(append(cells, rej.Reason)); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
