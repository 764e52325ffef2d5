package sheet

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the csv parser.
type CSVOptions struct {
	Delimiter rune // 0 = detect from the header line (";" or ",")
}

// ReadCSV reads a csv file. The first record becomes the header. A UTF-8 BOM
// on the first line is dropped.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	br := bufio.NewReader(r)

	delim := opts.Delimiter
	if delim == 0 {
		peek, _ := br.Peek(4096)
		delim = detectDelimiter(string(peek))
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	t := &Table{}
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		if first {
			first = false
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
			t.Header = record
			continue
		}

		cells := make([]Cell, len(record))
		for i, v := range record {
			cells[i] = TextCell(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// detectDelimiter picks ";" when the first line has more semicolons than
// commas. Spreadsheet software in pt-BR locales exports csv with ";".
func detectDelimiter(sample string) rune {
	line := sample
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
