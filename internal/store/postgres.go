package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/omnissiah/prodledger/internal/db"
	"github.com/omnissiah/prodledger/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres opens a pool for connString and wraps it.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded Postgres migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return eris.Wrap(db.Migrate(ctx, s.pool, migrationFS, "migrations/postgres"), "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// queryID runs a single-id lookup and maps no rows to found=false.
func (s *PostgresStore) queryID(ctx context.Context, what, sql string, args ...any) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "postgres: find %s", what)
	}
	return id, true, nil
}

// --- Entity lookups ---

func (s *PostgresStore) FindHospitalByID(ctx context.Context, id int64) (int64, bool, error) {
	return s.queryID(ctx, "hospital by id", `SELECT id FROM hospitals WHERE id = $1`, id)
}

func (s *PostgresStore) FindHospitalByName(ctx context.Context, field model.HospitalNameField, lowered string) (int64, bool, error) {
	if !field.Valid() {
		return 0, false, eris.Errorf("postgres: unknown hospital name field %q", field)
	}
	sql := fmt.Sprintf(`SELECT id FROM hospitals WHERE LOWER(COALESCE(%s, '')) = $1 ORDER BY id LIMIT 1`,
		pgx.Identifier{string(field)}.Sanitize())
	return s.queryID(ctx, "hospital by "+string(field), sql, lowered)
}

func (s *PostgresStore) FindDoctorByUsername(ctx context.Context, lowered string) (int64, bool, error) {
	return s.queryID(ctx, "doctor by username",
		`SELECT id FROM users WHERE role = 'doctor' AND LOWER(username) = $1 ORDER BY id LIMIT 1`, lowered)
}

func (s *PostgresStore) FindDoctorByFullName(ctx context.Context, lowered string) (int64, bool, error) {
	return s.queryID(ctx, "doctor by full name",
		`SELECT u.id FROM users u JOIN doctors d ON d.user_id = u.id
		  WHERE u.role = 'doctor' AND LOWER(d.full_name) = $1 ORDER BY u.id LIMIT 1`, lowered)
}

func (s *PostgresStore) FindProcedureByCode(ctx context.Context, code string) (int64, bool, error) {
	return s.queryID(ctx, "procedure by code",
		`SELECT id FROM procedures WHERE tuss_code = LOWER($1) ORDER BY id LIMIT 1`, code)
}

func (s *PostgresStore) FindProcedureByName(ctx context.Context, name string) (int64, bool, error) {
	return s.queryID(ctx, "procedure by name",
		`SELECT id FROM procedures WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`, name)
}

// --- Prices ---

// ActivePrice returns the newest active price of the pair together with the
// number of active records the pair has.
func (s *PostgresStore) ActivePrice(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, int, error) {
	var (
		price  string
		active int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT price::text, count(*) OVER ()
		   FROM hospital_procedure_prices
		  WHERE hospital_id = $1 AND procedure_id = $2 AND active
		  ORDER BY id DESC
		  LIMIT 1`,
		hospitalID, procedureID,
	).Scan(&price, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: active price")
	}
	d, err := parseDecimal(&price)
	if err != nil {
		return nil, 0, err
	}
	return d, active, nil
}

const deactivatePairSQL = `UPDATE hospital_procedure_prices SET active = FALSE
	WHERE hospital_id = $1 AND procedure_id = $2 AND active`

func (s *PostgresStore) AddPrice(ctx context.Context, p model.HospitalPrice) (int64, error) {
	var id int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deactivatePairSQL, p.HospitalID, p.ProcedureID); err != nil {
			return eris.Wrap(err, "postgres: deactivate previous prices")
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO hospital_procedure_prices (hospital_id, procedure_id, price, note, active)
			 VALUES ($1, $2, $3::numeric, $4, TRUE)
			 RETURNING id`,
			p.HospitalID, p.ProcedureID, p.Price.String(), nullString(p.Note),
		).Scan(&id)
		return eris.Wrap(err, "postgres: insert price")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) UpdatePrice(ctx context.Context, p model.HospitalPrice) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var hospitalID, procedureID int64
		err := tx.QueryRow(ctx,
			`SELECT hospital_id, procedure_id FROM hospital_procedure_prices WHERE id = $1 FOR UPDATE`, p.ID,
		).Scan(&hospitalID, &procedureID)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "price %d", p.ID)
		}
		if err != nil {
			return eris.Wrap(err, "postgres: load price")
		}

		if p.Active {
			if _, err := tx.Exec(ctx, deactivatePairSQL, hospitalID, procedureID); err != nil {
				return eris.Wrap(err, "postgres: deactivate other prices")
			}
		}
		_, err = tx.Exec(ctx,
			`UPDATE hospital_procedure_prices SET price = $2::numeric, note = $3, active = $4 WHERE id = $1`,
			p.ID, p.Price.String(), nullString(p.Note), p.Active,
		)
		return eris.Wrap(err, "postgres: update price")
	})
}

func (s *PostgresStore) DeactivatePrice(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE hospital_procedure_prices SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "postgres: deactivate price")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "price %d", id)
	}
	return nil
}

const pgPriceColumns = `SELECT hp.id, hp.hospital_id, hp.procedure_id, p.tuss_code, p.name,
	        hp.price::text, COALESCE(hp.note, ''), hp.active, hp.end_date::text, hp.created_at
	   FROM hospital_procedure_prices hp
	   JOIN procedures p ON p.id = hp.procedure_id`

func (s *PostgresStore) GetPrice(ctx context.Context, id int64) (model.HospitalPrice, error) {
	hp, err := scanHospitalPrice(s.pool.QueryRow(ctx, pgPriceColumns+` WHERE hp.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return hp, eris.Wrapf(ErrNotFound, "price %d", id)
	}
	if err != nil {
		return hp, eris.Wrap(err, "postgres: get price")
	}
	return hp, nil
}

func (s *PostgresStore) ClosePrice(ctx context.Context, id int64, endDate time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE hospital_procedure_prices SET end_date = $2::date WHERE id = $1`,
		id, endDate.Format(model.DateLayout))
	if err != nil {
		return eris.Wrap(err, "postgres: close price")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "price %d", id)
	}
	return nil
}

func (s *PostgresStore) ListPrices(ctx context.Context, hospitalID int64) ([]model.HospitalPrice, error) {
	rows, err := s.pool.Query(ctx, pgPriceColumns+`
		  WHERE hp.hospital_id = $1
		  ORDER BY p.name, hp.id DESC`,
		hospitalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prices")
	}
	defer rows.Close()

	var out []model.HospitalPrice
	for rows.Next() {
		hp, err := scanHospitalPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, hp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate prices")
}

func (s *PostgresStore) ProceduresForHospital(ctx context.Context, hospitalID int64) ([]model.PricedProcedure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (hp.procedure_id)
		        p.id, p.tuss_code, p.name, COALESCE(p.charge_unit, ''), hp.price::text
		   FROM hospital_procedure_prices hp
		   JOIN procedures p ON p.id = hp.procedure_id
		  WHERE hp.hospital_id = $1 AND p.active AND hp.active
		  ORDER BY hp.procedure_id, hp.id DESC`,
		hospitalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: procedures for hospital")
	}
	defer rows.Close()

	var out []model.PricedProcedure
	for rows.Next() {
		var (
			pp    model.PricedProcedure
			price string
		)
		if err := rows.Scan(&pp.ProcedureID, &pp.TUSSCode, &pp.Name, &pp.ChargeUnit, &price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan procedure")
		}
		if pp.Price, err = decimal.NewFromString(price); err != nil {
			return nil, eris.Wrapf(err, "postgres: parse price %q", price)
		}
		out = append(out, pp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate procedures")
}

// --- Productions ---

const insertProductionSQL = `INSERT INTO productions
	(exec_date, doctor_user_id, hospital_id, procedure_id, quantity, unit_price, note, import_batch)
	VALUES ($1::date, $2, $3, $4, $5, $6::numeric, $7, $8::uuid)
	RETURNING id`

func productionArgs(p model.Production) []any {
	var batch any
	if p.ImportBatch != nil {
		batch = p.ImportBatch.String()
	}
	return []any{
		p.ExecDate.Format(model.DateLayout), p.DoctorID, p.HospitalID, p.ProcedureID,
		p.Quantity, decimalArg(p.UnitPrice), nullString(p.Note), batch,
	}
}

// InsertProduction writes one production in its own transaction.
func (s *PostgresStore) InsertProduction(ctx context.Context, p model.Production) (int64, error) {
	var id int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return eris.Wrap(tx.QueryRow(ctx, insertProductionSQL, productionArgs(p)...).Scan(&id), "postgres: insert production")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertProductions writes every row in one transaction.
func (s *PostgresStore) InsertProductions(ctx context.Context, rows []model.Production) (int, error) {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i, p := range rows {
			var id int64
			if err := tx.QueryRow(ctx, insertProductionSQL, productionArgs(p)...).Scan(&id); err != nil {
				return eris.Wrapf(err, "postgres: insert production %d of %d", i+1, len(rows))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *PostgresStore) ListProductions(ctx context.Context, f model.ProductionFilter) ([]model.ProductionView, error) {
	sql, args, err := buildListQuery(postgresList, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list productions")
	}
	defer rows.Close()

	var out []model.ProductionView
	for rows.Next() {
		v, err := scanProductionView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate productions")
}

func (s *PostgresStore) DeleteOwnProduction(ctx context.Context, doctorID, productionID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM productions WHERE id = $1 AND doctor_user_id = $2`, productionID, doctorID)
	if err != nil {
		return false, eris.Wrap(err, "postgres: delete production")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DoctorHospitalIDs(ctx context.Context, doctorID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hospital_id FROM doctor_hospitals WHERE user_id = $1 ORDER BY hospital_id`, doctorID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: doctor hospitals")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hospital id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate doctor hospitals")
}

// --- Catalog ---

func (s *PostgresStore) CreateHospital(ctx context.Context, h model.Hospital) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO hospitals (corporate_name, trade_name, nickname) VALUES ($1, $2, $3) RETURNING id`,
		h.CorporateName, nullString(h.TradeName), nullString(h.Nickname),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert hospital")
	}
	return id, nil
}

// CreateUser inserts an account; doctors with a full name also get a
// doctors row.
func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (username, role) VALUES ($1, $2) RETURNING id`,
			strings.TrimSpace(u.Username), string(u.Role),
		).Scan(&id); err != nil {
			return eris.Wrap(err, "postgres: insert user")
		}
		if u.Role != model.RoleDoctor || u.FullName == "" {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO doctors (user_id, full_name) VALUES ($1, $2)`, id, u.FullName)
		return eris.Wrap(err, "postgres: insert doctor")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) LinkDoctorHospital(ctx context.Context, doctorID, hospitalID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctor_hospitals (user_id, hospital_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		doctorID, hospitalID)
	return eris.Wrap(err, "postgres: link doctor hospital")
}

var procedureUpsert = db.UpsertConfig{
	Table:        "procedures",
	Columns:      []string{"tuss_code", "name", "charge_unit", "active"},
	ConflictKeys: []string{"tuss_code"},
}

// UpsertProcedures merges a procedure catalog keyed by TUSS code, which is
// stored lowercased. A code repeated in procs keeps its last occurrence.
func (s *PostgresStore) UpsertProcedures(ctx context.Context, procs []model.Procedure) (int64, error) {
	rows := make([][]any, 0, len(procs))
	seen := make(map[string]int, len(procs))
	for _, p := range procs {
		code := strings.ToLower(strings.TrimSpace(p.TUSSCode))
		if code == "" {
			continue
		}
		row := []any{code, strings.TrimSpace(p.Name), nullString(p.ChargeUnit), p.Active}
		if i, dup := seen[code]; dup {
			rows[i] = row
			continue
		}
		seen[code] = len(rows)
		rows = append(rows, row)
	}
	n, err := db.BulkUpsert(ctx, s.pool, procedureUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert procedures")
	}
	return n, nil
}
