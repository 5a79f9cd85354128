package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"spesevoce/internal/core"
	"spesevoce/internal/log"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Info   map[string]string `json:"info,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readyResponse{Status: "ready", Checks: make(map[string]string), Info: s.readyInfo}
	status := http.StatusOK
	for _, c := range s.readyChecks {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleProcessSpeech(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.tracker.ProcessSpeech(r.Context(), p.Get("text"))
	if err != nil {
		s.fail(w, r, err, log.OpProcessSpeech)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type setCurrencyResponse struct {
	Success        bool          `json:"success"`
	Currency       core.Currency `json:"currency"`
	CurrencySymbol string        `json:"currencySymbol"`
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.tracker.SetCurrency(p.Get("currency"))
	if err != nil {
		s.fail(w, r, err, log.OpSetCurrency)
		return
	}
	writeJSON(w, http.StatusOK, setCurrencyResponse{
		Success:        true,
		Currency:       c,
		CurrencySymbol: c.Symbol(),
	})
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sum, err := s.tracker.DailySummary(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		s.fail(w, r, err, log.OpSummary)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = string(core.USD)
	}

	// Buffered so a store failure can still become a JSON 500.
	var buf bytes.Buffer
	if err := s.tracker.ExportCSV(r.Context(), &buf, currency); err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}

	filename := fmt.Sprintf("expenses-%s-%s.csv", currency, s.tracker.Today().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// fail maps err to a status: validation errors are the caller's, the rest are logged as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, core.ErrTextRequired):
		writeError(w, http.StatusBadRequest, "Text required")
	case errors.Is(err, core.ErrInvalidCurrency):
		writeError(w, http.StatusBadRequest, "Invalid currency. Use USD or NGN")
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
