package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) InitPayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ListingID int64                `json:"listing_id"`
		Method    models.PaymentMethod `json:"payment_method"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	started, err := h.payments.Init(r.Context(), identity.UserID, req.ListingID, req.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

func (h *Handler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		CardNumber      string           `json:"card_number"`
		Phone           string           `json:"phone"`
		DonationPercent *decimal.Decimal `json:"donation_percent"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.payments.Authorize(r.Context(), mux.Vars(r)["token"], identity.UserID, models.AuthorizeInput{
		CardNumber:      req.CardNumber,
		Phone:           req.Phone,
		DonationPercent: req.DonationPercent,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	order, err := h.payments.Settle(r.Context(), mux.Vars(r)["token"], identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
