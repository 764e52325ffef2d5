package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/omnissiah/prodledger/internal/model"
)

func readBack(t *testing.T, data []byte) *xlsx.File {
	t.Helper()
	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	return f
}

func rowStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.Value
	}
	return out
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestWrite_EmptyIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	f := readBack(t, buf.Bytes())
	require.Len(t, f.Sheets, 1)
	sh := f.Sheets[0]
	assert.Equal(t, "Produção", sh.Name)
	require.Len(t, sh.Rows, 1)
	assert.Equal(t, Header, rowStrings(sh.Rows[0]))
}

func TestWrite_Rows(t *testing.T) {
	rows := []model.ProductionView{
		{
			ExecDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			HospitalName:  "EyeCenter Botucatu",
			Username:      "drjoao",
			DoctorName:    "João Pereira",
			TUSSCode:      "0405050380",
			ProcedureName: "Facectomia",
			Quantity:      2,
			UnitPrice:     decPtr("120.50"),
			Note:          "exemplo",
		},
		{
			ExecDate:      time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
			HospitalName:  "HSL",
			Username:      "maria.silva",
			TUSSCode:      "0405050399",
			ProcedureName: "Biometria",
			Quantity:      1,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))

	sh := readBack(t, buf.Bytes()).Sheets[0]
	require.Len(t, sh.Rows, 3)

	first := sh.Rows[1].Cells
	assert.Equal(t, "2025-01-15", first[0].Value)
	assert.Equal(t, "João Pereira", first[2].Value)
	assert.Equal(t, "0405050380", first[3].Value)
	assert.Equal(t, "2", first[5].Value)
	assert.Equal(t, "120.5", first[6].Value)
	assert.Equal(t, "241", first[7].Value)
	assert.Equal(t, "exemplo", first[8].Value)

	second := sh.Rows[2].Cells
	assert.Equal(t, "maria.silva", second[2].Value, "falls back to username")
	assert.Equal(t, "0", second[6].Value, "missing price exports as zero")
	assert.Equal(t, "0", second[7].Value)
}

func TestColumnWidth(t *testing.T) {
	assert.Equal(t, 12, columnWidth(0))
	assert.Equal(t, 12, columnWidth(10))
	assert.Equal(t, 20, columnWidth(18))
	assert.Equal(t, 60, columnWidth(58))
	assert.Equal(t, 60, columnWidth(500))
}

func TestFilename(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "producao.xlsx", Filename(model.ProductionFilter{}))
	assert.Equal(t, "producao.xlsx", Filename(model.ProductionFilter{DoctorID: 3}))
	assert.Equal(t, "producao_2025-01-01_a_2025-01-31.xlsx", Filename(model.ProductionFilter{DateFrom: &from, DateTo: &to}))
	assert.Equal(t, "producao_2025-01-01_a_fim.xlsx", Filename(model.ProductionFilter{DateFrom: &from}))
	assert.Equal(t, "producao_ini_a_2025-01-31.xlsx", Filename(model.ProductionFilter{DateTo: &to}))
}
