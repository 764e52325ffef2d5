package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/production"
)

func (s *Server) doctorDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.analytics.DoctorDashboard(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) doctorProcedures(w http.ResponseWriter, r *http.Request) {
	doctorID := principalFrom(r.Context()).UserID
	hospitalID, ok := positiveID(r.URL.Query().Get("hospital_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "hospital_id is required")
		return
	}

	allowed, err := s.production.AllowedHospitals(r.Context(), doctorID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !slices.Contains(allowed, hospitalID) {
		s.fail(w, r, production.ErrHospitalNotAllowed)
		return
	}

	procs, err := s.prices.ProceduresForHospital(r.Context(), hospitalID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if procs == nil {
		procs = []model.PricedProcedure{}
	}
	writeJSON(w, http.StatusOK, procs)
}

type batchRequest struct {
	HospitalID int64             `json:"hospital_id"`
	ExecDate   string            `json:"exec_date"`
	Items      []production.Item `json:"items"`
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := s.production.CreateBatch(r.Context(), principalFrom(r.Context()).UserID, req.HospitalID, req.ExecDate, req.Items)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": n})
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r, production.ListLimit, production.ListLimit)
	views, err := s.production.ListMine(r.Context(), principalFrom(r.Context()).UserID, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "rows": toRows(views)})
}

func (s *Server) deleteMine(w http.ResponseWriter, r *http.Request) {
	productionID, ok := pathID(r, "productionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid production id")
		return
	}
	deleted, err := s.production.DeleteMine(r.Context(), principalFrom(r.Context()).UserID, productionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
