package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/pricing"
	"github.com/omnissiah/prodledger/internal/production"
	"github.com/omnissiah/prodledger/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error to a status code. Unknown errors are logged and
// reported as 500 without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var hdr *importer.HeaderError
	switch {
	case errors.As(err, &hdr):
		writeError(w, http.StatusBadRequest, hdr.Message())
	case eris.Is(err, importer.ErrUnsupportedFile):
		writeError(w, http.StatusUnsupportedMediaType, "arquivo não suportado: envie .xlsx ou .csv")
	case eris.Is(err, production.ErrHospitalNotAllowed):
		writeError(w, http.StatusForbidden, "hospital não vinculado ao médico")
	case eris.Is(err, production.ErrInvalidDate),
		eris.Is(err, production.ErrInvalidQuantity),
		eris.Is(err, production.ErrNoActivePrice),
		eris.Is(err, production.ErrEmptyBatch),
		eris.Is(err, pricing.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case eris.Is(err, store.ErrNotFound), eris.Is(err, pricing.ErrPriceNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID reads a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	return positiveID(chi.URLParam(r, name))
}

func positiveID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseFilter reads the listing filters from the query string. Malformed ids
// and dates are ignored. The limit falls back to def and never exceeds max.
func parseFilter(r *http.Request, def, max int) model.ProductionFilter {
	q := r.URL.Query()
	var f model.ProductionFilter
	f.DoctorID, _ = positiveID(q.Get("doctor_id"))
	f.HospitalID, _ = positiveID(q.Get("hospital_id"))
	f.ProcedureID, _ = positiveID(q.Get("procedure_id"))
	f.DateFrom = queryDate(q.Get("date_from"))
	f.DateTo = queryDate(q.Get("date_to"))

	f.Limit = def
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = n
	}
	f.Limit = model.ClampLimit(f.Limit, max)
	return f
}

func queryDate(s string) *time.Time {
	t, ok := importer.ParseDateText(s)
	if !ok {
		return nil
	}
	return &t
}
