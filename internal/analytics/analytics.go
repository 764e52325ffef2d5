// Package analytics aggregates production quantities for the admin and
// doctor dashboards.
package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omnissiah/prodledger/internal/model"
)

// Dashboard sizes.
const (
	TopLimit       = 8
	BreakdownLimit = 30
	RecentLimit    = 5
)

// PeriodLabel names the admin series when an explicit date range is given.
const PeriodLabel = "período"

// Store is the read-only persistence the dashboards need.
type Store interface {
	CatalogCounts(ctx context.Context) (model.CatalogCounts, error)
	ProductionQuantity(ctx context.Context, filter model.ProductionFilter) (int64, error)
	MonthlyQuantity(ctx context.Context, filter model.ProductionFilter) ([]model.MonthQuantity, error)
	RankProductions(ctx context.Context, filter model.ProductionFilter, by model.RankBy, limit int) ([]model.Ranked, error)
	HospitalsForDoctor(ctx context.Context, doctorID int64) ([]model.HospitalRef, error)
	ListProductions(ctx context.Context, filter model.ProductionFilter) ([]model.ProductionView, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to pick the current year.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service builds dashboards from Store aggregates.
type Service struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

// NewService creates a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "analytics")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// yearRange returns Jan 1 and Dec 31 of year.
func yearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Dashboard aggregates production matching f. Catalog counts ignore f. The
// monthly series covers the current year unless f carries a date bound.
// Limit in f is ignored.
func (s *Service) Dashboard(ctx context.Context, f model.ProductionFilter) (*model.Dashboard, error) {
	f.Limit = 0
	out := &model.Dashboard{Period: PeriodLabel}

	monthly := f
	if f.DateFrom == nil && f.DateTo == nil {
		year := s.now().Year()
		from, to := yearRange(year)
		monthly.DateFrom, monthly.DateTo = &from, &to
		out.Period = strconv.Itoa(year)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.store.CatalogCounts(gctx)
		out.Totals.CatalogCounts = c
		return eris.Wrap(err, "analytics: catalog counts")
	})
	g.Go(func() error {
		n, err := s.store.ProductionQuantity(gctx, f)
		out.Totals.Procedures = n
		return eris.Wrap(err, "analytics: production total")
	})
	g.Go(func() error {
		rows, err := s.store.MonthlyQuantity(gctx, monthly)
		out.Monthly = model.MonthSeries(rows)
		return eris.Wrap(err, "analytics: monthly series")
	})
	g.Go(func() error {
		rows, err := s.store.RankProductions(gctx, f, model.RankDoctors, TopLimit)
		out.TopDoctors = nonNil(rows)
		return eris.Wrap(err, "analytics: top doctors")
	})
	g.Go(func() error {
		rows, err := s.store.RankProductions(gctx, f, model.RankHospitals, TopLimit)
		out.TopHospitals = nonNil(rows)
		return eris.Wrap(err, "analytics: top hospitals")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug("dashboard built",
		zap.String("period", out.Period),
		zap.Int64("procedures", out.Totals.Procedures),
	)
	return out, nil
}

// DoctorDashboard aggregates the doctor's own production: all-time total and
// procedure breakdown, the current year's monthly series and the latest
// entries.
func (s *Service) DoctorDashboard(ctx context.Context, doctorID int64) (*model.DoctorDashboard, error) {
	year := s.now().Year()
	from, to := yearRange(year)
	own := model.ProductionFilter{DoctorID: doctorID}
	thisYear := model.ProductionFilter{DoctorID: doctorID, DateFrom: &from, DateTo: &to}
	recent := model.ProductionFilter{DoctorID: doctorID, Limit: RecentLimit}

	out := &model.DoctorDashboard{Year: year}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hs, err := s.store.HospitalsForDoctor(gctx, doctorID)
		out.Hospitals = nonNil(hs)
		out.HospitalsCount = len(hs)
		return eris.Wrap(err, "analytics: doctor hospitals")
	})
	g.Go(func() error {
		n, err := s.store.ProductionQuantity(gctx, own)
		out.ProceduresTotal = n
		return eris.Wrap(err, "analytics: doctor total")
	})
	g.Go(func() error {
		rows, err := s.store.RankProductions(gctx, own, model.RankProcedures, BreakdownLimit)
		out.Breakdown = nonNil(rows)
		return eris.Wrap(err, "analytics: doctor breakdown")
	})
	g.Go(func() error {
		rows, err := s.store.MonthlyQuantity(gctx, thisYear)
		out.Monthly = model.MonthSeries(rows)
		return eris.Wrap(err, "analytics: doctor monthly series")
	})
	g.Go(func() error {
		views, err := s.store.ListProductions(gctx, recent)
		out.Recent = nonNil(views)
		return eris.Wrap(err, "analytics: doctor recent")
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "analytics: dashboard of doctor %d", doctorID)
	}
	return out, nil
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
