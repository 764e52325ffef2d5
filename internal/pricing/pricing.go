// Package pricing resolves the active contracted price of a procedure at a
// hospital and maintains the one-active-price-per-pair invariant on writes.
package pricing

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/model"
)

// Source reads active prices. ActivePrice returns the active price with the
// highest id for the pair (nil when there is none) and the number of active
// records the pair has.
type Source interface {
	ActivePrice(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, int, error)
}

// Store is the persistence needed by the price write path. AddPrice and
// UpdatePrice with active=true must deactivate the pair's other active
// records in the same transaction.
type Store interface {
	Source
	AddPrice(ctx context.Context, p model.HospitalPrice) (int64, error)
	GetPrice(ctx context.Context, id int64) (model.HospitalPrice, error)
	UpdatePrice(ctx context.Context, p model.HospitalPrice) error
	DeactivatePrice(ctx context.Context, id int64) error
	ClosePrice(ctx context.Context, id int64, endDate time.Time) error
	ListPrices(ctx context.Context, hospitalID int64) ([]model.HospitalPrice, error)
	ProceduresForHospital(ctx context.Context, hospitalID int64) ([]model.PricedProcedure, error)
}

// ErrPriceNotFound is returned when a price record does not belong to the
// hospital it was addressed through.
var ErrPriceNotFound = eris.New("pricing: price not found for hospital")

// Resolver answers "what does this procedure cost at this hospital".
type Resolver struct {
	src Source
}

// NewResolver creates a Resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the active price for the pair, or nil when none exists.
// More than one active record is a data anomaly: the most recently inserted
// one wins and a warning is logged.
func (r *Resolver) Resolve(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, error) {
	price, active, err := r.src.ActivePrice(ctx, hospitalID, procedureID)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: resolve hospital=%d procedure=%d", hospitalID, procedureID)
	}
	if active > 1 {
		zap.L().Warn("multiple active prices for pair, using most recent",
			zap.String("component", "pricing"),
			zap.Int64("hospital_id", hospitalID),
			zap.Int64("procedure_id", procedureID),
			zap.Int("active_count", active),
		)
	}
	return price, nil
}

// Service is the price write path.
type Service struct {
	store Store
}

// NewService creates a Service over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddPrice parses amount and stores it as the new active price for the pair.
func (s *Service) AddPrice(ctx context.Context, hospitalID, procedureID int64, amount, note string) (int64, error) {
	price, err := requireAmount(amount)
	if err != nil {
		return 0, err
	}
	if hospitalID <= 0 || procedureID <= 0 {
		return 0, eris.New("pricing: hospital and procedure are required")
	}

	id, err := s.store.AddPrice(ctx, model.HospitalPrice{
		HospitalID:  hospitalID,
		ProcedureID: procedureID,
		Price:       price,
		Note:        note,
		Active:      true,
	})
	if err != nil {
		return 0, eris.Wrap(err, "pricing: add price")
	}
	return id, nil
}

// UpdatePrice edits a price record of the hospital.
func (s *Service) UpdatePrice(ctx context.Context, hospitalID, id int64, amount, note string, active bool) error {
	price, err := requireAmount(amount)
	if err != nil {
		return err
	}
	if err := s.owned(ctx, hospitalID, id); err != nil {
		return err
	}
	if err := s.store.UpdatePrice(ctx, model.HospitalPrice{ID: id, Price: price, Note: note, Active: active}); err != nil {
		return eris.Wrapf(err, "pricing: update price %d", id)
	}
	return nil
}

// Deactivate marks a price record of the hospital inactive.
func (s *Service) Deactivate(ctx context.Context, hospitalID, id int64) error {
	if err := s.owned(ctx, hospitalID, id); err != nil {
		return err
	}
	if err := s.store.DeactivatePrice(ctx, id); err != nil {
		return eris.Wrapf(err, "pricing: deactivate price %d", id)
	}
	return nil
}

// ClosePrice records the last day a price of the hospital applies. The
// active flag is untouched: resolution does not read end dates.
func (s *Service) ClosePrice(ctx context.Context, hospitalID, id int64, endDate time.Time) error {
	if err := s.owned(ctx, hospitalID, id); err != nil {
		return err
	}
	if err := s.store.ClosePrice(ctx, id, model.CivilDate(endDate)); err != nil {
		return eris.Wrapf(err, "pricing: close price %d", id)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, hospitalID, id int64) error {
	hp, err := s.store.GetPrice(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "pricing: load price %d", id)
	}
	if hp.HospitalID != hospitalID {
		return eris.Wrapf(ErrPriceNotFound, "price %d hospital %d", id, hospitalID)
	}
	return nil
}

// ListForHospital returns the full price history of a hospital.
func (s *Service) ListForHospital(ctx context.Context, hospitalID int64) ([]model.HospitalPrice, error) {
	prices, err := s.store.ListPrices(ctx, hospitalID)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: list prices for hospital %d", hospitalID)
	}
	return prices, nil
}

// ProceduresForHospital returns one row per active procedure with its latest
// active price.
func (s *Service) ProceduresForHospital(ctx context.Context, hospitalID int64) ([]model.PricedProcedure, error) {
	procs, err := s.store.ProceduresForHospital(ctx, hospitalID)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: procedures for hospital %d", hospitalID)
	}
	return procs, nil
}

func requireAmount(amount string) (decimal.Decimal, error) {
	price, err := ParseAmount(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if price == nil {
		return decimal.Zero, eris.Wrap(ErrInvalidAmount, "empty")
	}
	if price.IsNegative() {
		return decimal.Zero, eris.Wrapf(ErrInvalidAmount, "negative %s", price.String())
	}
	return *price, nil
}
