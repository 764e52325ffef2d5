package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var procedureUpsert = UpsertConfig{
	Table:        "procedures",
	Columns:      []string{"tuss_code", "name", "charge_unit"},
	ConflictKeys: []string{"tuss_code"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, procedureUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "procedures",
		ConflictKeys: []string{"tuss_code"},
	}, [][]any{{"0405050380", "Facectomia"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "procedures",
		Columns: []string{"tuss_code", "name"},
	}, [][]any{{"0405050380", "Facectomia"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_procedures"}, procedureUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "procedures" .* ON CONFLICT \("tuss_code"\) DO UPDATE SET "name" = EXCLUDED."name", "charge_unit" = EXCLUDED."charge_unit"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, procedureUpsert, [][]any{
		{"0405050380", "Facectomia", "olho"},
		{"4150102", "Biometria", "exame"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_procedures"}, procedureUpsert.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, procedureUpsert, [][]any{{"1", "a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for procedures")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"procedures", `"procedures"`},
		{"public.procedures", `"public"."procedures"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"tuss_code", "name", "charge_unit"`, quoteAndJoin([]string{"tuss_code", "name", "charge_unit"}))
}
