// Package sheet reads tabular upload files (xlsx workbooks and csv) into an
// in-memory table of cells.
package sheet

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnsupportedFile is returned by Read for file names whose extension is
// neither a workbook nor csv.
var ErrUnsupportedFile = eris.New("sheet: unsupported file type")

// Cell is one spreadsheet cell. Native date cells carry their time value in
// Time with IsTime set. Numeric workbook cells hold the stored number in Text.
type Cell struct {
	Text   string
	Time   time.Time
	IsTime bool
}

// Blank reports whether the cell holds no date and only whitespace.
func (c Cell) Blank() bool {
	return !c.IsTime && strings.TrimSpace(c.Text) == ""
}

// TextCell builds a plain text cell.
func TextCell(s string) Cell { return Cell{Text: s} }

// Table is a header row followed by data rows. Rows may be shorter than the
// header.
type Table struct {
	Header []string
	Rows   [][]Cell
}

// At returns the cell at (row, col) of the data rows, or an empty cell when
// either index is out of range. A negative col means "column absent".
func (t *Table) At(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return Cell{}
	}
	return t.Rows[row][col]
}

var workbookExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

// Supported reports whether name has an extension Read accepts.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return workbookExts[ext] || ext == ".csv"
}

// Read parses r as a workbook or csv depending on the extension of name.
// Workbooks are read from the first sheet.
func Read(name string, r io.Reader) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case workbookExts[ext]:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrap(err, "sheet: read upload")
		}
		return ReadXLSX(bytes.NewReader(data), int64(len(data)), XLSXOptions{})
	case ext == ".csv":
		return ReadCSV(r, CSVOptions{})
	default:
		return nil, eris.Wrapf(ErrUnsupportedFile, "%q", name)
	}
}
