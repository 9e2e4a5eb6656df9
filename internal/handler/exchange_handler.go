package handler

import (
	"net/http"

	"github.com/honeynil/ReWearExchange/internal/models"
)

func (h *Handler) RequestExchange(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.ExchangeProposal
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.exchanges.Request(r.Context(), identity.UserID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) MyExchanges(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	requests, err := h.exchanges.ListMine(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) RespondExchange(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.ExchangeStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.exchanges.Respond(r.Context(), id, identity.UserID, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) ConfirmExchange(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	completed, err := h.exchanges.Confirm(r.Context(), id, identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

// ExchangeThread only scopes access; message storage lives elsewhere.
func (h *Handler) ExchangeThread(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.exchanges.AuthorizeThread(r.Context(), id, identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
