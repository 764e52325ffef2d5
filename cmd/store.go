package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/omnissiah/prodledger/internal/analytics"
	"github.com/omnissiah/prodledger/internal/db"
	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/metrics"
	"github.com/omnissiah/prodledger/internal/pricing"
	"github.com/omnissiah/prodledger/internal/production"
	"github.com/omnissiah/prodledger/internal/resolve"
	"github.com/omnissiah/prodledger/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// services is everything the commands build on top of a store.
type services struct {
	Store      store.Store
	Metrics    *metrics.Collector
	Importer   *importer.Importer
	Prices     *pricing.Service
	Production *production.Service
	Analytics  *analytics.Service
}

func newServices(st store.Store) *services {
	m := metrics.NewCollector()
	resolver := pricing.NewResolver(st)
	return &services{
		Store:      st,
		Metrics:    m,
		Importer:   importer.New(resolve.New(st), resolver, st, importer.WithMetrics(m)),
		Prices:     pricing.NewService(st),
		Production: production.NewService(st, resolver),
		Analytics:  analytics.NewService(st),
	}
}
