package sheet

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one worksheet. The first row becomes the header.
func ReadXLSX(r io.ReaderAt, size int64, opts XLSXOptions) (*Table, error) {
	f, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sh, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	t := &Table{}
	for i, row := range sh.Rows {
		cells := rowToCells(row, f.Date1904)
		if i == 0 {
			t.Header = make([]string, len(cells))
			for j, c := range cells {
				t.Header[j] = c.Text
			}
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sh, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sh, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToCells(row *xlsx.Row, date1904 bool) []Cell {
	if row == nil {
		return nil
	}
	cells := make([]Cell, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		c := Cell{Text: cell.String()}
		if cell.Type() == xlsx.CellTypeNumeric {
			if cell.IsTime() {
				if tm, err := cell.GetTime(date1904); err == nil {
					c.Time = tm
					c.IsTime = true
				}
			} else {
				// Stored value, not the display format: "1234.5" rather than "1,234.50".
				c.Text = cell.Value
			}
		}
		cells[j] = c
	}
	return cells
}
