package exporter

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/sheet"
)

func TestWriteTemplate_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	f := readBack(t, buf.Bytes())
	require.Len(t, f.Sheets, 1)
	sh := f.Sheets[0]
	assert.Equal(t, "import", sh.Name)
	require.Len(t, sh.Rows, 3)
	assert.Equal(t, importer.Columns, rowStrings(sh.Rows[0]))
	assert.Equal(t, "EyeCenter Botucatu", sh.Rows[1].Cells[1].Value)
	assert.Equal(t, "1", sh.Rows[2].Cells[1].Value)
}

type stubEntities struct{}

func (stubEntities) Hospital(_ context.Context, tok string) (int64, bool) {
	return map[string]int64{"EyeCenter Botucatu": 7, "1": 1}[tok], tok == "EyeCenter Botucatu" || tok == "1"
}

func (stubEntities) Doctor(_ context.Context, tok string) (int64, bool) {
	return 10, tok == "drjoao" || tok == "maria.silva"
}

func (stubEntities) Procedure(_ context.Context, tok string) (int64, bool) {
	return 20, tok == "0405050380" || tok == "Biometria"
}

type stubPrices struct{}

func (stubPrices) Resolve(context.Context, int64, int64) (*decimal.Decimal, error) {
	d := decimal.NewFromInt(80)
	return &d, nil
}

type captureInserter struct{ rows []model.Production }

func (c *captureInserter) InsertProduction(_ context.Context, p model.Production) (int64, error) {
	c.rows = append(c.rows, p)
	return int64(len(c.rows)), nil
}

func TestWriteTemplate_ImportsCleanly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	tbl, err := sheet.Read(TemplateFilename, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	ins := &captureInserter{}
	sum, err := importer.New(stubEntities{}, stubPrices{}, ins).Import(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted, sum.Message())
	require.Len(t, ins.rows, 2)
	assert.True(t, decimal.RequireFromString("120.50").Equal(*ins.rows[0].UnitPrice))
	assert.Equal(t, 2, ins.rows[1].Quantity)
	assert.True(t, decimal.NewFromInt(80).Equal(*ins.rows[1].UnitPrice))
}
