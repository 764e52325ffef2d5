package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rotisserie/eris"

	"github.com/omnissiah/prodledger/internal/model"
)

const (
	sumQuantitySQL = "COALESCE(SUM(pr.quantity), 0)"

	catalogCountsSQL = `SELECT (SELECT COUNT(*) FROM hospitals),
	        (SELECT COUNT(*) FROM users WHERE role = 'doctor')`

	hospitalsForDoctorSelect = `SELECT h.id, ` + hospitalNameSQL + ` AS name
	   FROM doctor_hospitals dh
	   JOIN hospitals h ON h.id = dh.hospital_id`
	hospitalsForDoctorOrder = ` ORDER BY name, h.id`
)

func productionsFrom(d listDialect) *goqu.SelectDataset {
	return goqu.Dialect(d.name).From(goqu.T("productions").As("pr"))
}

func preparedSQL(ds *goqu.SelectDataset, what string) (string, []any, error) {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, eris.Wrapf(err, "store: build %s query", what)
	}
	return sql, args, nil
}

// buildQuantityQuery sums the quantity of the filtered productions.
func buildQuantityQuery(d listDialect, f model.ProductionFilter) (string, []any, error) {
	ds := productionsFrom(d).Select(goqu.L(sumQuantitySQL))
	return preparedSQL(filterProductions(ds, d, f), "quantity")
}

// buildMonthlyQuery sums the filtered quantity per calendar month. Months of
// different years fall in the same bucket; callers bound the date range.
func buildMonthlyQuery(d listDialect, f model.ProductionFilter) (string, []any, error) {
	ds := productionsFrom(d).
		Select(d.month.As("m"), goqu.L(sumQuantitySQL).As("qty")).
		GroupBy(d.month).
		Order(d.month.Asc())
	return preparedSQL(filterProductions(ds, d, f), "monthly")
}

// buildRankingQuery ranks the filtered productions by summed quantity,
// grouped by doctor, hospital or procedure. Rows are (name, code, qty).
func buildRankingQuery(d listDialect, f model.ProductionFilter, by model.RankBy, limit int) (string, []any, error) {
	ds := productionsFrom(d)
	var (
		name, code exp.LiteralExpression
		groupBy    []any
	)
	switch by {
	case model.RankDoctors:
		ds = ds.
			Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("pr.doctor_user_id")))).
			LeftJoin(goqu.T("doctors").As("d"), goqu.On(goqu.I("d.user_id").Eq(goqu.I("pr.doctor_user_id"))))
		name = goqu.L("COALESCE(NULLIF(d.full_name, ''), u.username)")
		code = goqu.L("''")
		groupBy = []any{name}
	case model.RankHospitals:
		ds = ds.Join(goqu.T("hospitals").As("h"), goqu.On(goqu.I("h.id").Eq(goqu.I("pr.hospital_id"))))
		name = goqu.L(hospitalNameSQL)
		code = goqu.L("''")
		groupBy = []any{name}
	case model.RankProcedures:
		ds = ds.Join(goqu.T("procedures").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("pr.procedure_id"))))
		name = goqu.L("p.name")
		code = goqu.L("p.tuss_code")
		groupBy = []any{name, code}
	default:
		return "", nil, eris.Errorf("store: unknown ranking %q", by)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ds = ds.
		Select(name.As("name"), code.As("code"), goqu.L(sumQuantitySQL).As("qty")).
		GroupBy(groupBy...).
		Order(goqu.I("qty").Desc(), goqu.I("name").Asc()).
		Limit(uint(limit))
	return preparedSQL(filterProductions(ds, d, f), "ranking")
}

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collect[T any](rows rowIter, scan func(r scannable) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate rows")
}

func scanMonth(r scannable) (model.MonthQuantity, error) {
	var m model.MonthQuantity
	return m, eris.Wrap(r.Scan(&m.Month, &m.Quantity), "store: scan month")
}

func scanRanked(r scannable) (model.Ranked, error) {
	var v model.Ranked
	return v, eris.Wrap(r.Scan(&v.Name, &v.TUSSCode, &v.Quantity), "store: scan ranking")
}

func scanHospitalRef(r scannable) (model.HospitalRef, error) {
	var h model.HospitalRef
	return h, eris.Wrap(r.Scan(&h.ID, &h.Name), "store: scan hospital")
}

// --- Postgres ---

func (s *PostgresStore) CatalogCounts(ctx context.Context) (model.CatalogCounts, error) {
	var c model.CatalogCounts
	err := s.pool.QueryRow(ctx, catalogCountsSQL).Scan(&c.Hospitals, &c.Doctors)
	return c, eris.Wrap(err, "postgres: catalog counts")
}

func (s *PostgresStore) ProductionQuantity(ctx context.Context, f model.ProductionFilter) (int64, error) {
	sql, args, err := buildQuantityQuery(postgresList, f)
	if err != nil {
		return 0, err
	}
	var qty int64
	err = s.pool.QueryRow(ctx, sql, args...).Scan(&qty)
	return qty, eris.Wrap(err, "postgres: production quantity")
}

func (s *PostgresStore) MonthlyQuantity(ctx context.Context, f model.ProductionFilter) ([]model.MonthQuantity, error) {
	sql, args, err := buildMonthlyQuery(postgresList, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: monthly quantity")
	}
	defer rows.Close()
	return collect(rows, scanMonth)
}

func (s *PostgresStore) RankProductions(ctx context.Context, f model.ProductionFilter, by model.RankBy, limit int) ([]model.Ranked, error) {
	sql, args, err := buildRankingQuery(postgresList, f, by, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: rank %s", by)
	}
	defer rows.Close()
	return collect(rows, scanRanked)
}

func (s *PostgresStore) HospitalsForDoctor(ctx context.Context, doctorID int64) ([]model.HospitalRef, error) {
	rows, err := s.pool.Query(ctx, hospitalsForDoctorSelect+` WHERE dh.user_id = $1`+hospitalsForDoctorOrder, doctorID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: hospitals for doctor")
	}
	defer rows.Close()
	return collect(rows, scanHospitalRef)
}

// --- SQLite ---

func (s *SQLiteStore) CatalogCounts(ctx context.Context) (model.CatalogCounts, error) {
	var c model.CatalogCounts
	err := s.db.QueryRowContext(ctx, catalogCountsSQL).Scan(&c.Hospitals, &c.Doctors)
	return c, eris.Wrap(err, "sqlite: catalog counts")
}

func (s *SQLiteStore) ProductionQuantity(ctx context.Context, f model.ProductionFilter) (int64, error) {
	sql, args, err := buildQuantityQuery(sqliteList, f)
	if err != nil {
		return 0, err
	}
	var qty int64
	err = s.db.QueryRowContext(ctx, sql, args...).Scan(&qty)
	return qty, eris.Wrap(err, "sqlite: production quantity")
}

func (s *SQLiteStore) MonthlyQuantity(ctx context.Context, f model.ProductionFilter) ([]model.MonthQuantity, error) {
	sql, args, err := buildMonthlyQuery(sqliteList, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: monthly quantity")
	}
	defer rows.Close()
	return collect(rows, scanMonth)
}

func (s *SQLiteStore) RankProductions(ctx context.Context, f model.ProductionFilter, by model.RankBy, limit int) ([]model.Ranked, error) {
	sql, args, err := buildRankingQuery(sqliteList, f, by, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: rank %s", by)
	}
	defer rows.Close()
	return collect(rows, scanRanked)
}

func (s *SQLiteStore) HospitalsForDoctor(ctx context.Context, doctorID int64) ([]model.HospitalRef, error) {
	rows, err := s.db.QueryContext(ctx, hospitalsForDoctorSelect+` WHERE dh.user_id = ?`+hospitalsForDoctorOrder, doctorID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: hospitals for doctor")
	}
	defer rows.Close()
	return collect(rows, scanHospitalRef)
}
