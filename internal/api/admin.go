package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/exporter"
	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
)

// productionRow is a listed production with its computed total.
type productionRow struct {
	model.ProductionView
	Doctor string          `json:"doctor"`
	Total  decimal.Decimal `json:"total"`
}

func toRows(views []model.ProductionView) []productionRow {
	out := make([]productionRow, len(views))
	for i, v := range views {
		out[i] = productionRow{ProductionView: v, Doctor: v.Doctor(), Total: v.Total()}
	}
	return out
}

func (s *Server) listProductions(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r, s.opts.ListLimit, s.opts.MaxRows)
	views, err := s.lister.ListProductions(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "rows": toRows(views)})
}

// dashboard aggregates productions with the listing filters. The limit
// parameter does not apply.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.analytics.Dashboard(r.Context(), parseFilter(r, 0, s.opts.MaxRows))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) exportProductions(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r, s.opts.ExportLimit, s.opts.ExportLimit)
	views, err := s.lister.ListProductions(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Write(&buf, views); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ObserveExport("productions", len(views))
	writeAttachment(w, exporter.Filename(f), buf.Bytes())
}

func (s *Server) importTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := exporter.WriteTemplate(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ObserveExport("template", 0)
	writeAttachment(w, exporter.TemplateFilename, buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", exporter.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

// importResponse is the Summary plus its rendered message.
type importResponse struct {
	*importer.Summary
	Message string   `json:"message"`
	Preview []string `json:"preview"`
	Omitted int      `json:"omitted"`
}

func (s *Server) importProductions(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many imports, try again later")
		return
	}

	maxBytes := int64(s.opts.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close() //nolint:errcheck

	sum, err := s.importer.ImportFile(r.Context(), hdr.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	preview, omitted := sum.Preview(s.opts.PreviewLimit)
	s.log.Info("import uploaded",
		zap.String("file", hdr.Filename),
		zap.Int64("admin_id", principalFrom(r.Context()).UserID),
		zap.String("batch_id", sum.BatchID.String()),
	)
	writeJSON(w, http.StatusOK, importResponse{
		Summary: sum,
		Message: sum.Message(),
		Preview: preview,
		Omitted: omitted,
	})
}

func (s *Server) listPrices(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := pathID(r, "hospitalID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid hospital id")
		return
	}
	prices, err := s.prices.ListForHospital(r.Context(), hospitalID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if prices == nil {
		prices = []model.HospitalPrice{}
	}
	writeJSON(w, http.StatusOK, prices)
}

// amountText accepts a price as a JSON string ("120,50") or number (120.5).
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountText(n.String())
	return nil
}

type priceRequest struct {
	ProcedureID int64      `json:"procedure_id"`
	Amount      amountText `json:"amount"`
	Note        string     `json:"note"`
	Active      *bool      `json:"active"`
}

func (s *Server) addPrice(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := pathID(r, "hospitalID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid hospital id")
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProcedureID <= 0 {
		writeError(w, http.StatusBadRequest, "procedure_id is required")
		return
	}

	id, err := s.prices.AddPrice(r.Context(), hospitalID, req.ProcedureID, string(req.Amount), req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// priceIDs reads the hospital and price ids of a price route.
func priceIDs(w http.ResponseWriter, r *http.Request) (hospitalID, priceID int64, ok bool) {
	if hospitalID, ok = pathID(r, "hospitalID"); !ok {
		writeError(w, http.StatusBadRequest, "invalid hospital id")
		return 0, 0, false
	}
	if priceID, ok = pathID(r, "priceID"); !ok {
		writeError(w, http.StatusBadRequest, "invalid price id")
		return 0, 0, false
	}
	return hospitalID, priceID, true
}

func (s *Server) updatePrice(w http.ResponseWriter, r *http.Request) {
	hospitalID, priceID, ok := priceIDs(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := s.prices.UpdatePrice(r.Context(), hospitalID, priceID, string(req.Amount), req.Note, active); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deactivatePrice(w http.ResponseWriter, r *http.Request) {
	hospitalID, priceID, ok := priceIDs(w, r)
	if !ok {
		return
	}
	if err := s.prices.Deactivate(r.Context(), hospitalID, priceID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) closePrice(w http.ResponseWriter, r *http.Request) {
	hospitalID, priceID, ok := priceIDs(w, r)
	if !ok {
		return
	}
	var req struct {
		EndDate string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	endDate, ok := importer.ParseDateText(req.EndDate)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}
	if err := s.prices.ClosePrice(r.Context(), hospitalID, priceID, endDate); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
