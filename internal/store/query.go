package store

import (
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/omnissiah/prodledger/internal/model"
)

// DefaultListLimit applies when a filter carries no limit.
const DefaultListLimit = 500

const hospitalNameSQL = "COALESCE(NULLIF(h.nickname, ''), NULLIF(h.trade_name, ''), h.corporate_name)"

// listDialect holds what differs between backends in the production listing.
// Dates and prices are always selected as text.
type listDialect struct {
	name      string
	execDate  exp.Expression
	unitPrice exp.Expression
	month     exp.LiteralExpression
	dateArg   func(time.Time) any
}

var (
	postgresList = listDialect{
		name:      "postgres",
		execDate:  goqu.L("pr.exec_date::text"),
		unitPrice: goqu.L("pr.unit_price::text"),
		month:     goqu.L("EXTRACT(MONTH FROM pr.exec_date)::int"),
		dateArg:   func(t time.Time) any { return model.CivilDate(t) },
	}
	sqliteList = listDialect{
		name:      "sqlite3",
		execDate:  goqu.I("pr.exec_date"),
		unitPrice: goqu.I("pr.unit_price"),
		month:     goqu.L("CAST(strftime('%m', pr.exec_date) AS INTEGER)"),
		dateArg:   func(t time.Time) any { return t.Format(model.DateLayout) },
	}
)

// buildListQuery renders the filtered production listing, newest first.
func buildListQuery(d listDialect, f model.ProductionFilter) (string, []any, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ds := goqu.Dialect(d.name).
		From(goqu.T("productions").As("pr")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("pr.doctor_user_id")))).
		LeftJoin(goqu.T("doctors").As("d"), goqu.On(goqu.I("d.user_id").Eq(goqu.I("pr.doctor_user_id")))).
		Join(goqu.T("hospitals").As("h"), goqu.On(goqu.I("h.id").Eq(goqu.I("pr.hospital_id")))).
		Join(goqu.T("procedures").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("pr.procedure_id")))).
		Select(
			goqu.I("pr.id"),
			d.execDate,
			goqu.I("pr.quantity"),
			d.unitPrice,
			goqu.L("COALESCE(pr.note, '')"),
			goqu.I("u.id"),
			goqu.I("u.username"),
			goqu.L("COALESCE(d.full_name, '')"),
			goqu.I("h.id"),
			goqu.L(hospitalNameSQL),
			goqu.I("p.id"),
			goqu.I("p.tuss_code"),
			goqu.I("p.name"),
		)

	sql, args, err := filterProductions(ds, d, f).
		Order(goqu.I("pr.exec_date").Desc(), goqu.I("pr.id").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, eris.Wrap(err, "store: build production list query")
	}
	return sql, args, nil
}

// filterProductions narrows a dataset over productions aliased "pr". The
// filter limit is not applied.
func filterProductions(ds *goqu.SelectDataset, d listDialect, f model.ProductionFilter) *goqu.SelectDataset {
	if f.DoctorID > 0 {
		ds = ds.Where(goqu.I("pr.doctor_user_id").Eq(f.DoctorID))
	}
	if f.HospitalID > 0 {
		ds = ds.Where(goqu.I("pr.hospital_id").Eq(f.HospitalID))
	}
	if f.ProcedureID > 0 {
		ds = ds.Where(goqu.I("pr.procedure_id").Eq(f.ProcedureID))
	}
	if f.DateFrom != nil {
		ds = ds.Where(goqu.I("pr.exec_date").Gte(d.dateArg(*f.DateFrom)))
	}
	if f.DateTo != nil {
		ds = ds.Where(goqu.I("pr.exec_date").Lte(d.dateArg(*f.DateTo)))
	}
	return ds
}

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanProductionView(r scannable) (model.ProductionView, error) {
	var (
		v        model.ProductionView
		execDate string
		price    *string
	)
	err := r.Scan(
		&v.ID, &execDate, &v.Quantity, &price, &v.Note,
		&v.DoctorID, &v.Username, &v.DoctorName,
		&v.HospitalID, &v.HospitalName,
		&v.ProcedureID, &v.TUSSCode, &v.ProcedureName,
	)
	if err != nil {
		return v, eris.Wrap(err, "store: scan production")
	}

	if v.ExecDate, err = parseDate(execDate); err != nil {
		return v, err
	}
	if v.UnitPrice, err = parseDecimal(price); err != nil {
		return v, err
	}
	return v, nil
}

// scanHospitalPrice reads the columns of priceColumns.
func scanHospitalPrice(r scannable) (model.HospitalPrice, error) {
	var (
		hp      model.HospitalPrice
		price   string
		endDate *string
	)
	if err := r.Scan(&hp.ID, &hp.HospitalID, &hp.ProcedureID, &hp.TUSSCode, &hp.ProcedureName,
		&price, &hp.Note, &hp.Active, &endDate, &hp.CreatedAt); err != nil {
		return hp, eris.Wrap(err, "store: scan price")
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return hp, eris.Wrapf(err, "store: parse price %q", price)
	}
	hp.Price = d
	if endDate != nil && *endDate != "" {
		t, err := parseDate(*endDate)
		if err != nil {
			return hp, err
		}
		hp.EndDate = &t
	}
	return hp, nil
}

// parseDate reads a stored civil date, ignoring any time suffix.
func parseDate(s string) (time.Time, error) {
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "store: parse date %q", s)
	}
	return t, nil
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse decimal %q", *s)
	}
	return &d, nil
}

// decimalArg is the query argument for an optional money value.
func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// nullString maps "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
