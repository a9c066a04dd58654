package http

import (
	"net/http"

	applog "budget/internal/log"
	"budget/internal/storage"
)

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
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
	items, err := s.records.ListIncomes(r.Context(), ownerID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.records.CreateIncome(r.Context(), ownerID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpCreate, storage.KindIncome, in.ID, ownerID)
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.records.UpdateIncome(r.Context(), ownerID, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpUpdate, storage.KindIncome, in.ID, ownerID)
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(r.Context())
	id := r.PathValue("id")
	if err := s.records.DeleteIncome(r.Context(), ownerID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogRecordChanged(r.Context(), applog.OpDelete, storage.KindIncome, id, ownerID)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Income deleted"})
}
