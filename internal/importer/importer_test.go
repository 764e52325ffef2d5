package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnissiah/prodledger/internal/metrics"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/sheet"
)

type fakeEntities struct {
	hospitals  map[string]int64
	doctors    map[string]int64
	procedures map[string]int64
}

func (f *fakeEntities) Hospital(_ context.Context, token string) (int64, bool) {
	id, ok := f.hospitals[token]
	return id, ok
}

func (f *fakeEntities) Doctor(_ context.Context, token string) (int64, bool) {
	id, ok := f.doctors[token]
	return id, ok
}

func (f *fakeEntities) Procedure(_ context.Context, token string) (int64, bool) {
	id, ok := f.procedures[token]
	return id, ok
}

type pair struct{ h, p int64 }

type fakePrices struct {
	prices map[pair]decimal.Decimal
	err    error
	calls  int
}

func (f *fakePrices) Resolve(_ context.Context, h, p int64) (*decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.prices[pair{h, p}]; ok {
		return &d, nil
	}
	return nil, nil
}

type fakeInserter struct {
	rows   []model.Production
	failOn map[string]error // keyed by note
}

func (f *fakeInserter) InsertProduction(_ context.Context, p model.Production) (int64, error) {
	if err, ok := f.failOn[p.Note]; ok {
		return 0, err
	}
	f.rows = append(f.rows, p)
	return int64(len(f.rows)), nil
}

func newFixture() (*fakeEntities, *fakePrices, *fakeInserter) {
	ents := &fakeEntities{
		hospitals:  map[string]int64{"EyeCenter Botucatu": 7, "1": 1},
		doctors:    map[string]int64{"drjoao": 10, "maria.silva": 11},
		procedures: map[string]int64{"0405050380": 20, "Biometria": 21},
	}
	prices := &fakePrices{prices: map[pair]decimal.Decimal{
		{1, 21}: decimal.RequireFromString("80.00"),
	}}
	return ents, prices, &fakeInserter{}
}

var fullHeader = []string{"data", "hospital", "medico", "procedimento", "quantidade", "valor_unitario", "obs"}

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

func mustDecimal(t *testing.T, d *decimal.Decimal) decimal.Decimal {
	t.Helper()
	require.NotNil(t, d)
	return *d
}

func TestImport_ScenarioA_ExplicitPrice(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "EyeCenter Botucatu", "drjoao", "0405050380", "1", "120,50", "exemplo"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Empty(t, sum.Failures)
	require.Len(t, ins.rows, 1)

	p := ins.rows[0]
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), p.ExecDate)
	assert.Equal(t, int64(7), p.HospitalID)
	assert.Equal(t, int64(10), p.DoctorID)
	assert.Equal(t, int64(20), p.ProcedureID)
	assert.Equal(t, 1, p.Quantity)
	assert.True(t, decimal.RequireFromString("120.50").Equal(mustDecimal(t, p.UnitPrice)))
	assert.Equal(t, "exemplo", p.Note)
	require.NotNil(t, p.ImportBatch)
	assert.Equal(t, sum.BatchID, *p.ImportBatch)
	assert.Zero(t, prices.calls, "explicit price must not hit the price table")
}

func TestImport_ScenarioB_PriceFromTable(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"15/02/2025", "1", "maria.silva", "Biometria", "2", "", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, ins.rows, 1)

	p := ins.rows[0]
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), p.ExecDate)
	assert.Equal(t, 2, p.Quantity)
	assert.True(t, decimal.RequireFromString("80.00").Equal(mustDecimal(t, p.UnitPrice)))
	assert.Empty(t, p.Note)
}

func TestImport_ScenarioC_UnknownHospital(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "Nowhere", "drjoao", "0405050380", "1", "", ""},
	))
	require.NoError(t, err)
	assert.Zero(t, sum.Inserted)
	assert.Empty(t, ins.rows)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, []string{ProblemHospital}, sum.Failures[0].Problems)
	assert.Equal(t, "row 2: hospital não encontrado", sum.Failures[0].String())
}

func TestImport_ScenarioD_MissingColumn(t *testing.T) {
	ents, prices, ins := newFixture()
	coll := metrics.NewCollector()
	im := New(ents, prices, ins, WithMetrics(coll))

	sum, err := im.Import(context.Background(), table(
		[]string{"data", "hospital", "medico", "quantidade"},
		[]string{"2025-01-15", "1", "drjoao", "1"},
	))
	require.Error(t, err)
	assert.Nil(t, sum)
	assert.Empty(t, ins.rows)

	var he *HeaderError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, []string{"procedimento"}, he.Missing)
	assert.Equal(t, "Cabeçalho inválido. Faltando colunas: procedimento", he.Message())
}

func TestImport_ScenarioE_PreviewCap(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	var rows [][]string
	for i := 0; i < 15; i++ {
		rows = append(rows, []string{"2025-01-15", "Nowhere", "drjoao", "0405050380", "", "", ""})
	}
	sum, err := im.Import(context.Background(), table(fullHeader, rows...))
	require.NoError(t, err)
	require.Len(t, sum.Failures, 15)

	shown, rest := sum.Preview(10)
	assert.Len(t, shown, 10)
	assert.Equal(t, 5, rest)
	assert.Equal(t, "row 2: hospital não encontrado", shown[0])
	assert.Equal(t, "row 11: hospital não encontrado", shown[9])

	msg := sum.Message()
	assert.True(t, strings.HasPrefix(msg, "Linhas ignoradas: 15. row 2: hospital não encontrado; row 3:"), msg)
	assert.True(t, strings.HasSuffix(msg, " (+5…)"), msg)
	assert.NotContains(t, msg, "row 12:")
}

func TestImport_BlankRowsSkippedSilently(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"", "  ", "", "", "3", "10", "only optional cells"},
		[]string{},
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "", "", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 2, sum.SkippedBlank)
	assert.Empty(t, sum.Failures)
}

func TestImport_ProblemsAccumulateInOrder(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"31/02/2025", "Nowhere", "nobody", "Biometria", "0", "abc", ""},
		[]string{"2025-01-15", "1", "nobody", "unknown", "", "", ""},
	))
	require.NoError(t, err)
	require.Len(t, sum.Failures, 2)
	assert.Equal(t, []string{ProblemDate, ProblemQuantity, ProblemUnitPrice, ProblemHospital, ProblemDoctor},
		sum.Failures[0].Problems)
	assert.Equal(t, "row 3: médico não encontrado, procedimento não encontrado", sum.Failures[1].String())
	assert.Empty(t, ins.rows)
}

func TestImport_NegativePriceRejected(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "1", "-5", ""},
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "1", "0", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "row 2: valor unitário inválido", sum.Failures[0].String())
	require.Len(t, ins.rows, 1)
	assert.True(t, decimal.Zero.Equal(mustDecimal(t, ins.rows[0].UnitPrice)))
}

func TestImport_UnpaddedDates(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"5/2/2025", "1", "drjoao", "Biometria", "", "", ""},
		[]string{"2025-1-5", "1", "drjoao", "Biometria", "", "", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	require.Len(t, ins.rows, 2)
	assert.Equal(t, time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), ins.rows[0].ExecDate)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), ins.rows[1].ExecDate)
}

func TestImport_QuantityDefaults(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	_, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "", "", "a"},
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "dois", "", "b"},
		[]string{"2025-01-15", "1", "drjoao", "Biometria", " 4 ", "", "c"},
	))
	require.NoError(t, err)
	require.Len(t, ins.rows, 3)
	assert.Equal(t, 1, ins.rows[0].Quantity)
	assert.Equal(t, 1, ins.rows[1].Quantity)
	assert.Equal(t, 4, ins.rows[2].Quantity)
}

func TestImport_NoPriceAnywhereInsertsNull(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "EyeCenter Botucatu", "drjoao", "Biometria", "", "", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, ins.rows, 1)
	assert.Nil(t, ins.rows[0].UnitPrice)
}

func TestImport_PriceLookupErrorInsertsNull(t *testing.T) {
	ents, prices, ins := newFixture()
	prices.err = eris.New("connection reset")
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "", "", ""},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Nil(t, ins.rows[0].UnitPrice)
}

func TestImport_InsertFailureIsRowProblem(t *testing.T) {
	ents, prices, ins := newFixture()
	ins.failOn = map[string]error{
		"boom": eris.Wrap(errors.New("violates check constraint"), "store: insert production"),
	}
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "1", "drjoao", "Biometria", "", "", "boom"},
		[]string{"2025-01-16", "1", "drjoao", "Biometria", "", "", "fine"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "row 2: erro ao inserir (violates check constraint)", sum.Failures[0].String())
	require.Len(t, ins.rows, 1)
	assert.Equal(t, "fine", ins.rows[0].Note)
}

func TestImport_NativeDateCell(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	tbl := table(fullHeader, []string{"", "1", "drjoao", "Biometria"})
	tbl.Rows[0][0] = sheet.Cell{Text: "45703", Time: time.Date(2025, 2, 15, 13, 30, 0, 0, time.UTC), IsTime: true}

	sum, err := im.Import(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), ins.rows[0].ExecDate)
}

func TestImport_HeaderCaseAndAccents(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	sum, err := im.Import(context.Background(), table(
		[]string{" Procedimento", "MÉDICO", "Hospital", "Data", "Valor Unitário", "Obs"},
		[]string{"Biometria", "drjoao", "1", "2025-01-15", "1.234,56", "x"},
	))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Inserted)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(mustDecimal(t, ins.rows[0].UnitPrice)))
}

func TestImport_CancelledContext(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := im.Import(ctx, table(fullHeader, []string{"2025-01-15", "1", "drjoao", "Biometria"}))
	require.Error(t, err)
	require.NotNil(t, sum)
	assert.Zero(t, sum.Inserted)
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestImport_BatchIDAndMetrics(t *testing.T) {
	ents, prices, ins := newFixture()
	coll := metrics.NewCollector()
	im := New(ents, prices, ins, WithMetrics(coll))
	fixed := uuid.MustParse("0b7a4f2e-3c1d-4e5f-9a8b-7c6d5e4f3a2b")
	im.newID = func() uuid.UUID { return fixed }

	sum, err := im.Import(context.Background(), table(fullHeader,
		[]string{"2025-01-15", "1", "drjoao", "Biometria"},
		[]string{"bad", "1", "drjoao", "Biometria"},
		[]string{},
	))
	require.NoError(t, err)
	assert.Equal(t, fixed, sum.BatchID)

	body := scrape(t, coll)
	assert.Contains(t, body, `prodledger_import_rows_total{result="inserted"} 1`)
	assert.Contains(t, body, `prodledger_import_rows_total{result="failed"} 1`)
	assert.Contains(t, body, `prodledger_import_rows_total{result="blank"} 1`)
}

func TestImportFile_CSV(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	in := "data;hospital;medico;procedimento;quantidade;valor_unitario\n" +
		"15/02/2025;1;maria.silva;Biometria;2;\n"
	sum, err := im.ImportFile(context.Background(), "lote.csv", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.True(t, decimal.RequireFromString("80").Equal(mustDecimal(t, ins.rows[0].UnitPrice)))
}

func TestImportFile_Unsupported(t *testing.T) {
	ents, prices, ins := newFixture()
	im := New(ents, prices, ins)

	_, err := im.ImportFile(context.Background(), "lote.pdf", strings.NewReader("%PDF"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnsupportedFile))
}

func TestSummaryMessage(t *testing.T) {
	tests := []struct {
		name string
		sum  Summary
		want string
	}{
		{
			name: "nothing",
			sum:  Summary{},
			want: "Nenhuma linha importada.",
		},
		{
			name: "only inserted",
			sum:  Summary{Inserted: 3},
			want: "Importação concluída: 3 linha(s) inserida(s).",
		},
		{
			name: "both",
			sum: Summary{Inserted: 1, Failures: []Outcome{
				{Row: 4, Problems: []string{ProblemDate}},
				{Row: 6, Problems: []string{ProblemDoctor, ProblemProcedure}},
			}},
			want: "Importação concluída: 1 linha(s) inserida(s).\n" +
				"Linhas ignoradas: 2. row 4: data inválida; row 6: médico não encontrado, procedimento não encontrado",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sum.Message())
		})
	}
}

func TestSummaryPreview_Limits(t *testing.T) {
	sum := &Summary{}
	for i := 0; i < 3; i++ {
		sum.Failures = append(sum.Failures, Outcome{Row: i + 2, Problems: []string{ProblemDate}})
	}

	shown, rest := sum.Preview(0)
	assert.Empty(t, shown)
	assert.Equal(t, 3, rest)

	shown, rest = sum.Preview(50)
	assert.Len(t, shown, 3)
	assert.Zero(t, rest)
	assert.Equal(t, fmt.Sprintf("row %d: %s", 4, ProblemDate), shown[2])
}
