// Package resolve maps loosely specified spreadsheet tokens (hospital names
// or ids, doctor usernames or full names, procedure TUSS codes or names) to
// canonical database ids.
package resolve

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/model"
)

// Finder performs the single-column lookups the resolver composes. Each
// method returns found=false with a nil error when nothing matches. Name
// arguments arrive already lowercased where the lookup is case-insensitive.
type Finder interface {
	FindHospitalByID(ctx context.Context, id int64) (int64, bool, error)
	FindHospitalByName(ctx context.Context, field model.HospitalNameField, lowered string) (int64, bool, error)
	FindDoctorByUsername(ctx context.Context, lowered string) (int64, bool, error)
	FindDoctorByFullName(ctx context.Context, lowered string) (int64, bool, error)
	FindProcedureByCode(ctx context.Context, code string) (int64, bool, error)
	FindProcedureByName(ctx context.Context, name string) (int64, bool, error)
}

// Strategy is one named lookup attempt.
type Strategy struct {
	Name string
	Find func(ctx context.Context, token string) (int64, bool, error)
}

// Resolver tries its strategy lists in order and returns the first hit.
// It never returns errors: a failing strategy is logged and skipped.
type Resolver struct {
	hospitalByID []Strategy
	hospital     []Strategy
	doctor       []Strategy
	procedure    []Strategy
	log          *zap.Logger
}

// New builds a Resolver over f.
func New(f Finder) *Resolver {
	byName := func(field model.HospitalNameField) Strategy {
		return Strategy{
			Name: "hospital." + string(field),
			Find: func(ctx context.Context, token string) (int64, bool, error) {
				return f.FindHospitalByName(ctx, field, strings.ToLower(token))
			},
		}
	}

	return &Resolver{
		hospitalByID: []Strategy{{
			Name: "hospital.id",
			Find: func(ctx context.Context, token string) (int64, bool, error) {
				id, _ := positiveInt(token)
				return f.FindHospitalByID(ctx, id)
			},
		}},
		hospital: []Strategy{
			byName(model.HospitalNickname),
			byName(model.HospitalTradeName),
			byName(model.HospitalCorporateName),
		},
		doctor: []Strategy{
			{Name: "doctor.username", Find: func(ctx context.Context, token string) (int64, bool, error) {
				return f.FindDoctorByUsername(ctx, strings.ToLower(token))
			}},
			{Name: "doctor.full_name", Find: func(ctx context.Context, token string) (int64, bool, error) {
				return f.FindDoctorByFullName(ctx, strings.ToLower(token))
			}},
		},
		procedure: []Strategy{
			{Name: "procedure.tuss_code", Find: f.FindProcedureByCode},
			{Name: "procedure.name", Find: f.FindProcedureByName},
		},
		log: zap.L().With(zap.String("component", "resolve")),
	}
}

// Hospital resolves a hospital id or display name. Numeric tokens are only
// ever matched against ids.
func (r *Resolver) Hospital(ctx context.Context, token string) (int64, bool) {
	token = strings.TrimSpace(token)
	if _, ok := positiveInt(token); ok {
		return r.first(ctx, r.hospitalByID, token)
	}
	return r.first(ctx, r.hospital, token)
}

// Doctor resolves a doctor username or full name.
func (r *Resolver) Doctor(ctx context.Context, token string) (int64, bool) {
	return r.first(ctx, r.doctor, strings.TrimSpace(token))
}

// Procedure resolves a TUSS code or procedure name.
func (r *Resolver) Procedure(ctx context.Context, token string) (int64, bool) {
	return r.first(ctx, r.procedure, strings.TrimSpace(token))
}

func (r *Resolver) first(ctx context.Context, strategies []Strategy, token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	for _, s := range strategies {
		id, ok, err := s.Find(ctx, token)
		if err != nil {
			r.log.Warn("lookup failed, treating as not found",
				zap.String("strategy", s.Name),
				zap.String("token", token),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return id, true
		}
	}
	return 0, false
}

// positiveInt reports whether s is made only of ASCII digits and parses to a
// value greater than zero.
func positiveInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
