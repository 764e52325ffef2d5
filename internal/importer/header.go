package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Import column names, as written in the header row of the template.
const (
	ColDate      = "data"
	ColHospital  = "hospital"
	ColDoctor    = "medico"
	ColProcedure = "procedimento"
	ColQuantity  = "quantidade"
	ColUnitPrice = "valor_unitario"
	ColNote      = "obs"
)

// Columns lists every import column in template order.
var Columns = []string{ColDate, ColHospital, ColDoctor, ColProcedure, ColQuantity, ColUnitPrice, ColNote}

var requiredColumns = []string{ColDate, ColHospital, ColDoctor, ColProcedure}

// HeaderError reports mandatory columns absent from the header row.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "importer: missing columns: " + strings.Join(e.Missing, ", ")
}

// Message is the user-facing text of the error.
func (e *HeaderError) Message() string {
	return "Cabeçalho inválido. Faltando colunas: " + strings.Join(e.Missing, ", ")
}

// FoldHeader normalizes a header cell: trimmed, lowercased, accents removed
// and inner spaces turned into underscores, so "Médico" matches "medico" and
// "Valor Unitário" matches "valor_unitario".
func FoldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), "_")
}

// columnIndex maps folded header names to their position. The first
// occurrence of a repeated name wins.
type columnIndex map[string]int

func mapHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		name := FoldHeader(h)
		if name == "" {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}
	return idx, nil
}

func (c columnIndex) position(name string) int {
	if i, ok := c[name]; ok {
		return i
	}
	return -1
}
