package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnissiah/prodledger/internal/sheet"
)

func table(header []string, rows ...[]string) *sheet.Table {
	t := &sheet.Table{Header: header}
	for _, r := range rows {
		cells := make([]sheet.Cell, len(r))
		for i, v := range r {
			cells[i] = sheet.TextCell(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func TestParseProcedures(t *testing.T) {
	procs, err := parseProcedures(table(
		[]string{"Código", "Nome", "Unidade", "Ativo"},
		[]string{"0405050380", "Facectomia", "olho", "sim"},
		[]string{"4150102A", " Biometria ", "", "não"},
		[]string{"", "sem código", "", ""},
		[]string{"123"},
	))
	require.NoError(t, err)
	require.Len(t, procs, 2)

	assert.Equal(t, "0405050380", procs[0].TUSSCode)
	assert.Equal(t, "olho", procs[0].ChargeUnit)
	assert.True(t, procs[0].Active)

	assert.Equal(t, "Biometria", procs[1].Name)
	assert.False(t, procs[1].Active)
}

func TestParseProcedures_MissingColumn(t *testing.T) {
	_, err := parseProcedures(table([]string{"tuss_code", "unidade"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name column")
}
