package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

type csvRows struct {
	f      *os.File
	r      *csv.Reader
	header []string
	index  map[string]int
	line   int
}

func openCSV(path string, required, allowed []string) (Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	stripUTF8BOM(br)

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false

	header, err := readCSVHeader(r)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := validateHeader(header, required, allowed); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &csvRows{
		f:      f,
		r:      r,
		header: header,
		index:  headerIndex(header),
		line:   1,
	}, nil
}

func (c *csvRows) Read() (Record, error) {
	for {
		c.line++
		cells, err := c.r.Read()
		if err != nil {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// the csv reader recovers at the next record boundary;
				// surface the row and keep the stream alive
				return Record{}, &RowError{Line: parseErr.Line, Err: parseErr.Err}
			}
			return Record{}, err
		}
		if len(cells) == 0 {
			continue
		}
		return Record{Line: c.line, header: c.index, cells: cells}, nil
	}
}

func (c *csvRows) Header() []string { return c.header }

func (c *csvRows) Close() error { return c.f.Close() }

func stripUTF8BOM(r *bufio.Reader) {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
}

func readCSVHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("missing header")
		}
		return nil, err
	}
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding")
		}
	}
	return h, nil
}
