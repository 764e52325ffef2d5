// Package api exposes the production ledger over HTTP: admin dashboards,
// listing, export and import of productions, hospital price tables, and the
// doctor production screens.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/omnissiah/prodledger/internal/analytics"
	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/metrics"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/pricing"
	"github.com/omnissiah/prodledger/internal/production"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins   []string
	ImportRatePerMin int
	MaxUploadMB      int
	MaxRows          int
	ListLimit        int
	ExportLimit      int
	PreviewLimit     int
}

// Lister reads production listings for the admin screens.
type Lister interface {
	ListProductions(ctx context.Context, filter model.ProductionFilter) ([]model.ProductionView, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	opts       Options
	lister     Lister
	importer   *importer.Importer
	prices     *pricing.Service
	production *production.Service
	analytics  *analytics.Service
	metrics    *metrics.Collector
	limiter    *rate.Limiter
	log        *zap.Logger
}

// New creates a Server. m may be nil.
func New(opts Options, lister Lister, im *importer.Importer, prices *pricing.Service, prod *production.Service, an *analytics.Service, m *metrics.Collector) *Server {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 5000
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = min(1000, opts.MaxRows)
	}
	if opts.ExportLimit <= 0 {
		opts.ExportLimit = opts.MaxRows
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 10
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.ImportRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.ImportRatePerMin)), opts.ImportRatePerMin)
	}

	return &Server{
		opts:       opts,
		lister:     lister,
		importer:   im,
		prices:     prices,
		production: prod,
		analytics:  an,
		metrics:    m,
		limiter:    limiter,
		log:        zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerUserID, headerUserRole},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireRole(model.RoleAdmin))

		r.Get("/analytics", s.dashboard)
		r.Get("/productions", s.listProductions)
		r.Get("/productions/export.xlsx", s.exportProductions)
		r.Get("/productions/import/template", s.importTemplate)
		r.Post("/productions/import", s.importProductions)

		r.Get("/hospitals/{hospitalID}/prices", s.listPrices)
		r.Post("/hospitals/{hospitalID}/prices", s.addPrice)
		r.Put("/hospitals/{hospitalID}/prices/{priceID}", s.updatePrice)
		r.Post("/hospitals/{hospitalID}/prices/{priceID}/deactivate", s.deactivatePrice)
		r.Post("/hospitals/{hospitalID}/prices/{priceID}/close", s.closePrice)
	})

	r.Route("/doctor", func(r chi.Router) {
		r.Use(requireRole(model.RoleDoctor))

		r.Get("/analytics", s.doctorDashboard)
		r.Get("/production/procedures", s.doctorProcedures)
		r.Post("/production", s.createBatch)
		r.Get("/production", s.listMine)
		r.Delete("/production/{productionID}", s.deleteMine)
	})

	return r
}

// observe records request metrics under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, status, elapsed)
		s.log.Debug("request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
