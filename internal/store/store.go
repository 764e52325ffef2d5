// Package store persists the billing catalog, hospital prices and
// production entries in Postgres (pgx) or SQLite (modernc).
package store

import (
	"context"
	"embed"

	"github.com/rotisserie/eris"

	"github.com/omnissiah/prodledger/internal/analytics"
	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/pricing"
	"github.com/omnissiah/prodledger/internal/production"
	"github.com/omnissiah/prodledger/internal/resolve"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// ErrNotFound is returned by updates addressing a row that does not exist.
var ErrNotFound = eris.New("store: not found")

// Store is everything the services need from persistence.
type Store interface {
	resolve.Finder
	pricing.Store
	importer.Inserter
	production.Store
	analytics.Store

	// Catalog
	CreateHospital(ctx context.Context, h model.Hospital) (int64, error)
	CreateUser(ctx context.Context, u model.User) (int64, error)
	LinkDoctorHospital(ctx context.Context, doctorID, hospitalID int64) error
	UpsertProcedures(ctx context.Context, procs []model.Procedure) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
