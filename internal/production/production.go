// Package production is the doctor-facing entry path: a doctor records a
// batch of procedures performed at one of their hospitals on one date, lists
// their own history, and deletes their own entries.
package production

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
)

// ListLimit caps a doctor's own history listing.
const ListLimit = 1000

// Batch validation errors.
var (
	ErrHospitalNotAllowed = eris.New("production: hospital not linked to doctor")
	ErrInvalidDate        = eris.New("production: invalid execution date, use YYYY-MM-DD or DD/MM/YYYY")
	ErrInvalidQuantity    = eris.New("production: quantity must be greater than zero")
	ErrNoActivePrice      = eris.New("production: procedure has no active price at hospital")
	ErrEmptyBatch         = eris.New("production: no items")
)

// Store is the persistence the service needs. InsertProductions writes every
// row in one transaction.
type Store interface {
	DoctorHospitalIDs(ctx context.Context, doctorID int64) ([]int64, error)
	InsertProductions(ctx context.Context, rows []model.Production) (int, error)
	ListProductions(ctx context.Context, filter model.ProductionFilter) ([]model.ProductionView, error)
	DeleteOwnProduction(ctx context.Context, doctorID, productionID int64) (bool, error)
}

// PriceResolver returns the active price of a pair, nil when none.
type PriceResolver interface {
	Resolve(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, error)
}

// Item is one procedure line of a batch.
type Item struct {
	ProcedureID int64  `json:"procedure_id"`
	Quantity    int    `json:"quantity"`
	Note        string `json:"note,omitempty"`
}

// Service implements the doctor production workflow.
type Service struct {
	store  Store
	prices PriceResolver
	log    *zap.Logger
}

// NewService creates a Service.
func NewService(store Store, prices PriceResolver) *Service {
	return &Service{
		store:  store,
		prices: prices,
		log:    zap.L().With(zap.String("component", "production")),
	}
}

// AllowedHospitals lists the hospitals linked to the doctor.
func (s *Service) AllowedHospitals(ctx context.Context, doctorID int64) ([]int64, error) {
	ids, err := s.store.DoctorHospitalIDs(ctx, doctorID)
	if err != nil {
		return nil, eris.Wrapf(err, "production: hospitals of doctor %d", doctorID)
	}
	return ids, nil
}

// CreateBatch validates and inserts items atomically, pricing each from the
// hospital's active price table. Any invalid item rejects the whole batch.
func (s *Service) CreateBatch(ctx context.Context, doctorID, hospitalID int64, execDate string, items []Item) (int, error) {
	allowed, err := s.AllowedHospitals(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(allowed, hospitalID) {
		return 0, ErrHospitalNotAllowed
	}

	date, ok := importer.ParseDateText(execDate)
	if !ok {
		return 0, ErrInvalidDate
	}
	if len(items) == 0 {
		return 0, ErrEmptyBatch
	}

	rows := make([]model.Production, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		price, err := s.prices.Resolve(ctx, hospitalID, it.ProcedureID)
		if err != nil {
			return 0, eris.Wrapf(err, "production: price for procedure %d", it.ProcedureID)
		}
		if price == nil {
			return 0, eris.Wrapf(ErrNoActivePrice, "procedure %d", it.ProcedureID)
		}
		rows = append(rows, model.Production{
			ExecDate:    date,
			DoctorID:    doctorID,
			HospitalID:  hospitalID,
			ProcedureID: it.ProcedureID,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Note:        strings.TrimSpace(it.Note),
		})
	}

	n, err := s.store.InsertProductions(ctx, rows)
	if err != nil {
		return 0, eris.Wrap(err, "production: insert batch")
	}
	s.log.Info("batch recorded",
		zap.Int64("doctor_id", doctorID),
		zap.Int64("hospital_id", hospitalID),
		zap.Int("rows", n),
	)
	return n, nil
}

// ListMine returns the doctor's own entries. The doctor id in filter is
// overridden and the limit is fixed.
func (s *Service) ListMine(ctx context.Context, doctorID int64, filter model.ProductionFilter) ([]model.ProductionView, error) {
	filter.DoctorID = doctorID
	filter.Limit = ListLimit
	rows, err := s.store.ListProductions(ctx, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "production: list for doctor %d", doctorID)
	}
	return rows, nil
}

// DeleteMine removes an entry owned by the doctor. It reports false when no
// such entry exists for that doctor.
func (s *Service) DeleteMine(ctx context.Context, doctorID, productionID int64) (bool, error) {
	ok, err := s.store.DeleteOwnProduction(ctx, doctorID, productionID)
	if err != nil {
		return false, eris.Wrapf(err, "production: delete %d", productionID)
	}
	return ok, nil
}
