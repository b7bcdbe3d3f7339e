package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paluwagan/internal/core"
	"paluwagan/internal/log"
)

type paymentRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Reference     string `json:"reference"`
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.GetCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toCollectionView(*c)).Write(w)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpPay, err)
		return
	}

	method := core.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod)))
	c, err := s.ledger.RecordPayment(r.Context(), chi.URLParam(r, "id"), method, sanitizeInput(req.Reference))
	if err != nil {
		writeError(w, r, log.OpPay, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toCollectionView(*c)).Write(w)
}

func (s *Server) handleCancelCollection(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.CancelCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toCollectionView(*c)).Write(w)
}

func (s *Server) handleMarkOverdue(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.MarkOverdue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toCollectionView(*c)).Write(w)
}

func (s *Server) handleReminderSent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ledger.MarkReminderSent(r.Context(), id); err != nil {
		writeError(w, r, log.OpRemind, err)
		return
	}
	c, err := s.ledger.GetCollection(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRemind, err)
		return
	}
	NewJSONResponse().Body(toCollectionView(*c)).Write(w)
}

func (s *Server) handleEvaluateReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, due, err := s.ledger.EvaluateReminder(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRemind, err)
		return
	}
	NewJSONResponse().Body(toReminderView(id, e, due)).Write(w)
}
