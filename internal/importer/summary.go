package importer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// messagePreview is how many failures Summary.Message spells out.
const messagePreview = 10

// Outcome is the result of one data row: inserted (no problems) or skipped
// with the ordered list of reasons.
type Outcome struct {
	Row          int      `json:"row"`
	ProductionID int64    `json:"production_id,omitempty"`
	Problems     []string `json:"problems,omitempty"`
}

// OK reports whether the row was inserted.
func (o Outcome) OK() bool { return len(o.Problems) == 0 }

// String renders a failed row as "row <n>: <problem>, <problem>".
func (o Outcome) String() string {
	return fmt.Sprintf("row %d: %s", o.Row, strings.Join(o.Problems, ", "))
}

// Summary is the report of one import batch. Failures are in row order.
type Summary struct {
	BatchID      uuid.UUID `json:"batch_id"`
	Inserted     int       `json:"inserted"`
	SkippedBlank int       `json:"skipped_blank"`
	Failures     []Outcome `json:"failures"`
}

// Preview returns at most limit failure descriptions and the number left
// out. A limit below 1 returns none.
func (s *Summary) Preview(limit int) ([]string, int) {
	if limit < 0 {
		limit = 0
	}
	n := min(limit, len(s.Failures))
	out := make([]string, n)
	for i := range n {
		out[i] = s.Failures[i].String()
	}
	return out, len(s.Failures) - n
}

// Message renders the batch result for the user, one line per part.
func (s *Summary) Message() string {
	var lines []string
	if s.Inserted > 0 {
		lines = append(lines, fmt.Sprintf("Importação concluída: %d linha(s) inserida(s).", s.Inserted))
	}
	if len(s.Failures) > 0 {
		shown, rest := s.Preview(messagePreview)
		line := fmt.Sprintf("Linhas ignoradas: %d. %s", len(s.Failures), strings.Join(shown, "; "))
		if rest > 0 {
			line += fmt.Sprintf(" (+%d…)", rest)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "Nenhuma linha importada."
	}
	return strings.Join(lines, "\n")
}
