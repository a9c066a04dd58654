package http

import (
	"net/http"

	applog "budget/internal/log"
	"budget/internal/storage"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
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
	items, err := s.records.ListBudgets(r.Context(), ownerID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.records.CreateBudget(r.Context(), ownerID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpCreate, storage.KindBudget, b.ID, ownerID)
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.records.UpdateBudget(r.Context(), ownerID, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpUpdate, storage.KindBudget, b.ID, ownerID)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(r.Context())
	id := r.PathValue("id")
	if err := s.records.DeleteBudget(r.Context(), ownerID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpDelete, storage.KindBudget, id, ownerID)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Category budget deleted"})
}
