package store

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/omnissiah/prodledger/internal/db"
	"github.com/omnissiah/prodledger/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. LOWER() in SQLite
// folds ASCII only, so name lookups are accent-sensitive here.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn. The pool is a single connection,
// which keeps ":memory:" databases alive and the pragmas in effect.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	sdb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

// Migrate runs every embedded SQLite schema file. The files are idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	const dir = "migrations/sqlite"
	names, err := db.MigrationFiles(migrationFS, dir)
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, name := range names {
		data, err := fs.ReadFile(migrationFS, path.Join(dir, name))
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", name)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) queryID(ctx context.Context, what, query string, args ...any) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "sqlite: find %s", what)
	}
	return id, true, nil
}

// --- Entity lookups ---

func (s *SQLiteStore) FindHospitalByID(ctx context.Context, id int64) (int64, bool, error) {
	return s.queryID(ctx, "hospital by id", `SELECT id FROM hospitals WHERE id = ?`, id)
}

func (s *SQLiteStore) FindHospitalByName(ctx context.Context, field model.HospitalNameField, lowered string) (int64, bool, error) {
	if !field.Valid() {
		return 0, false, eris.Errorf("sqlite: unknown hospital name field %q", field)
	}
	return s.queryID(ctx, "hospital by "+string(field),
		`SELECT id FROM hospitals WHERE LOWER(COALESCE(`+string(field)+`, '')) = ? ORDER BY id LIMIT 1`, lowered)
}

func (s *SQLiteStore) FindDoctorByUsername(ctx context.Context, lowered string) (int64, bool, error) {
	return s.queryID(ctx, "doctor by username",
		`SELECT id FROM users WHERE role = 'doctor' AND LOWER(username) = ? ORDER BY id LIMIT 1`, lowered)
}

func (s *SQLiteStore) FindDoctorByFullName(ctx context.Context, lowered string) (int64, bool, error) {
	return s.queryID(ctx, "doctor by full name",
		`SELECT u.id FROM users u JOIN doctors d ON d.user_id = u.id
		  WHERE u.role = 'doctor' AND LOWER(d.full_name) = ? ORDER BY u.id LIMIT 1`, lowered)
}

func (s *SQLiteStore) FindProcedureByCode(ctx context.Context, code string) (int64, bool, error) {
	return s.queryID(ctx, "procedure by code",
		`SELECT id FROM procedures WHERE tuss_code = LOWER(?) ORDER BY id LIMIT 1`, code)
}

func (s *SQLiteStore) FindProcedureByName(ctx context.Context, name string) (int64, bool, error) {
	return s.queryID(ctx, "procedure by name",
		`SELECT id FROM procedures WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`, name)
}

// --- Prices ---

func (s *SQLiteStore) ActivePrice(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, int, error) {
	var (
		price  string
		active int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT price, count(*) OVER ()
		   FROM hospital_procedure_prices
		  WHERE hospital_id = ? AND procedure_id = ? AND active = 1
		  ORDER BY id DESC
		  LIMIT 1`,
		hospitalID, procedureID,
	).Scan(&price, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: active price")
	}
	d, err := parseDecimal(&price)
	if err != nil {
		return nil, 0, err
	}
	return d, active, nil
}

const sqliteDeactivatePair = `UPDATE hospital_procedure_prices SET active = 0
	WHERE hospital_id = ? AND procedure_id = ? AND active = 1`

func (s *SQLiteStore) AddPrice(ctx context.Context, p model.HospitalPrice) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteDeactivatePair, p.HospitalID, p.ProcedureID); err != nil {
			return eris.Wrap(err, "sqlite: deactivate previous prices")
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO hospital_procedure_prices (hospital_id, procedure_id, price, note, active, created_at)
			 VALUES (?, ?, ?, ?, 1, ?)`,
			p.HospitalID, p.ProcedureID, p.Price.String(), nullString(p.Note), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert price")
		}
		id, err = res.LastInsertId()
		return eris.Wrap(err, "sqlite: price id")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) UpdatePrice(ctx context.Context, p model.HospitalPrice) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var hospitalID, procedureID int64
		err := tx.QueryRowContext(ctx,
			`SELECT hospital_id, procedure_id FROM hospital_procedure_prices WHERE id = ?`, p.ID,
		).Scan(&hospitalID, &procedureID)
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "price %d", p.ID)
		}
		if err != nil {
			return eris.Wrap(err, "sqlite: load price")
		}

		if p.Active {
			if _, err := tx.ExecContext(ctx, sqliteDeactivatePair, hospitalID, procedureID); err != nil {
				return eris.Wrap(err, "sqlite: deactivate other prices")
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE hospital_procedure_prices SET price = ?, note = ?, active = ? WHERE id = ?`,
			p.Price.String(), nullString(p.Note), p.Active, p.ID,
		)
		return eris.Wrap(err, "sqlite: update price")
	})
}

func (s *SQLiteStore) DeactivatePrice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE hospital_procedure_prices SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: deactivate price")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "price %d", id)
	}
	return nil
}

const sqlitePriceColumns = `SELECT hp.id, hp.hospital_id, hp.procedure_id, p.tuss_code, p.name,
	        hp.price, COALESCE(hp.note, ''), hp.active, hp.end_date, hp.created_at
	   FROM hospital_procedure_prices hp
	   JOIN procedures p ON p.id = hp.procedure_id`

func (s *SQLiteStore) GetPrice(ctx context.Context, id int64) (model.HospitalPrice, error) {
	hp, err := scanHospitalPrice(s.db.QueryRowContext(ctx, sqlitePriceColumns+` WHERE hp.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return hp, eris.Wrapf(ErrNotFound, "price %d", id)
	}
	if err != nil {
		return hp, eris.Wrap(err, "sqlite: get price")
	}
	return hp, nil
}

func (s *SQLiteStore) ClosePrice(ctx context.Context, id int64, endDate time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE hospital_procedure_prices SET end_date = ? WHERE id = ?`,
		endDate.Format(model.DateLayout), id)
	if err != nil {
		return eris.Wrap(err, "sqlite: close price")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "price %d", id)
	}
	return nil
}

func (s *SQLiteStore) ListPrices(ctx context.Context, hospitalID int64) ([]model.HospitalPrice, error) {
	rows, err := s.db.QueryContext(ctx, sqlitePriceColumns+`
		  WHERE hp.hospital_id = ?
		  ORDER BY p.name, hp.id DESC`,
		hospitalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prices")
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
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prices")
}

func (s *SQLiteStore) ProceduresForHospital(ctx context.Context, hospitalID int64) ([]model.PricedProcedure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.tuss_code, p.name, COALESCE(p.charge_unit, ''), hp.price
		   FROM hospital_procedure_prices hp
		   JOIN procedures p ON p.id = hp.procedure_id
		  WHERE hp.hospital_id = ? AND p.active = 1 AND hp.active = 1
		    AND hp.id = (SELECT MAX(x.id) FROM hospital_procedure_prices x
		                  WHERE x.hospital_id = hp.hospital_id
		                    AND x.procedure_id = hp.procedure_id
		                    AND x.active = 1)
		  ORDER BY hp.procedure_id`,
		hospitalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: procedures for hospital")
	}
	defer rows.Close()

	var out []model.PricedProcedure
	for rows.Next() {
		var (
			pp    model.PricedProcedure
			price string
		)
		if err := rows.Scan(&pp.ProcedureID, &pp.TUSSCode, &pp.Name, &pp.ChargeUnit, &price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan procedure")
		}
		if pp.Price, err = decimal.NewFromString(price); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse price %q", price)
		}
		out = append(out, pp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate procedures")
}

// --- Productions ---

const sqliteInsertProduction = `INSERT INTO productions
	(exec_date, doctor_user_id, hospital_id, procedure_id, quantity, unit_price, note, import_batch, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertProductionTx(ctx context.Context, tx *sql.Tx, p model.Production) (int64, error) {
	args := append(productionArgs(p), time.Now().UTC())
	res, err := tx.ExecContext(ctx, sqliteInsertProduction, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertProduction writes one production in its own transaction.
func (s *SQLiteStore) InsertProduction(ctx context.Context, p model.Production) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertProductionTx(ctx, tx, p)
		return eris.Wrap(err, "sqlite: insert production")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertProductions writes every row in one transaction.
func (s *SQLiteStore) InsertProductions(ctx context.Context, rows []model.Production) (int, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, p := range rows {
			if _, err := insertProductionTx(ctx, tx, p); err != nil {
				return eris.Wrapf(err, "sqlite: insert production %d of %d", i+1, len(rows))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *SQLiteStore) ListProductions(ctx context.Context, f model.ProductionFilter) ([]model.ProductionView, error) {
	query, args, err := buildListQuery(sqliteList, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list productions")
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
	return out, eris.Wrap(rows.Err(), "sqlite: iterate productions")
}

func (s *SQLiteStore) DeleteOwnProduction(ctx context.Context, doctorID, productionID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM productions WHERE id = ? AND doctor_user_id = ?`, productionID, doctorID)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: delete production")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) DoctorHospitalIDs(ctx context.Context, doctorID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hospital_id FROM doctor_hospitals WHERE user_id = ? ORDER BY hospital_id`, doctorID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: doctor hospitals")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hospital id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate doctor hospitals")
}

// --- Catalog ---

func (s *SQLiteStore) CreateHospital(ctx context.Context, h model.Hospital) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO hospitals (corporate_name, trade_name, nickname, created_at) VALUES (?, ?, ?, ?)`,
		h.CorporateName, nullString(h.TradeName), nullString(h.Nickname), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert hospital")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: hospital id")
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, role, created_at) VALUES (?, ?, ?)`,
			strings.TrimSpace(u.Username), string(u.Role), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert user")
		}
		if id, err = res.LastInsertId(); err != nil {
			return eris.Wrap(err, "sqlite: user id")
		}
		if u.Role != model.RoleDoctor || u.FullName == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO doctors (user_id, full_name) VALUES (?, ?)`, id, u.FullName)
		return eris.Wrap(err, "sqlite: insert doctor")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) LinkDoctorHospital(ctx context.Context, doctorID, hospitalID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO doctor_hospitals (user_id, hospital_id) VALUES (?, ?)`, doctorID, hospitalID)
	return eris.Wrap(err, "sqlite: link doctor hospital")
}

func (s *SQLiteStore) UpsertProcedures(ctx context.Context, procs []model.Procedure) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO procedures (tuss_code, name, charge_unit, active) VALUES (LOWER(?), ?, ?, ?)
			 ON CONFLICT (tuss_code) DO UPDATE SET
			   name = excluded.name, charge_unit = excluded.charge_unit, active = excluded.active`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare procedure upsert")
		}
		defer stmt.Close()

		for _, p := range procs {
			code := strings.TrimSpace(p.TUSSCode)
			if code == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, code, strings.TrimSpace(p.Name), nullString(p.ChargeUnit), p.Active); err != nil {
				return eris.Wrapf(err, "sqlite: upsert procedure %s", code)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
