package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"shadowprism/go-core/internal/dispatch"
	"shadowprism/go-core/internal/ledger"
)

const maxBodyBytes = 1 << 16

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "engine": "go"})
}

func (s *Server) handleShield(w http.ResponseWriter, r *http.Request) {
	var req dispatch.ShieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.engine.Shield(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req dispatch.SwapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.engine.Swap(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req dispatch.PayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.engine.Pay(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	records, err := s.records.ListRecent(r.Context(), limit)
	if err != nil {
		s.log.Error("list transactions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := s.records.Get(r.Context(), ps.ByName("id"))
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.log.Error("get transaction failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeDispatchError maps the dispatch error taxonomy onto status codes.
// Validation and compliance rejections carry their specific reason; network
// and signing failures surface as a generic execution failure.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var validationErr *dispatch.ValidationError
	var complianceErr *dispatch.ComplianceError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, dispatch.ErrUnknownStrategy):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &complianceErr):
		writeError(w, http.StatusForbidden, "high risk destination address")
	default:
		s.log.Error("intent execution failed", "err", err)
		writeError(w, http.StatusInternalServerError, "execution failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}
