package http

import (
	"net/http"

	applog "budget/internal/log"
	"budget/internal/storage"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, claimed, err := s.parseMonthQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, claimed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.records.ListExpenses(r.Context(), ownerID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.records.CreateExpense(r.Context(), ownerID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpCreate, storage.KindExpense, e.ID, ownerID)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.records.UpdateExpense(r.Context(), ownerID, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpUpdate, storage.KindExpense, e.ID, ownerID)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(r.Context())
	id := r.PathValue("id")
	if err := s.records.DeleteExpense(r.Context(), ownerID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpDelete, storage.KindExpense, id, ownerID)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Expense deleted"})
}
