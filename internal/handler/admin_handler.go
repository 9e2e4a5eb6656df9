package handler

import (
	"net/http"

	"github.com/honeynil/ReWearExchange/internal/models"
)

func (h *Handler) PendingListings(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	listings, err := h.listings.PendingQueue(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) ApproveListing(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true)
}

func (h *Handler) RejectListing(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var listing *models.Listing
	if approve {
		listing, err = h.listings.Approve(r.Context(), id, identity)
	} else {
		listing, err = h.listings.Reject(r.Context(), id, identity)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	users, err := h.admin.ListUsers(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) UserDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	details, err := h.admin.UserDetails(r.Context(), identity, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
