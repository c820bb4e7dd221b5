package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxRows serves records from the first sheet of an Excel workbook. The
// legacy extracts were often delivered as Access-to-Excel exports; the first
// row is the header, same as the CSV layout.
type xlsxRows struct {
	rows   [][]string
	header []string
	index  map[string]int
	pos    int
}

func openXLSX(path string, required, allowed []string) (Rows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	if err := validateHeader(header, required, allowed); err != nil {
		return nil, err
	}

	return &xlsxRows{
		rows:   rows[1:],
		header: header,
		index:  headerIndex(header),
		pos:    0,
	}, nil
}

func (x *xlsxRows) Read() (Record, error) {
	for x.pos < len(x.rows) {
		cells := x.rows[x.pos]
		x.pos++
		if len(cells) == 0 {
			continue
		}
		// sheet row 1 is the header, so data row n lives on sheet line n+1
		return Record{Line: x.pos + 1, header: x.index, cells: cells}, nil
	}
	return Record{}, io.EOF
}

func (x *xlsxRows) Header() []string { return x.header }

func (x *xlsxRows) Close() error { return nil }
