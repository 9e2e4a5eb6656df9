package handler

import (
	"context"
	"net/http"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListMine(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.orders.Get)
}

func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.orders.Ship)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.orders.ConfirmReceipt)
}

func (h *Handler) orderAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error)) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := action(r.Context(), id, identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	summary, err := h.ledger.Balance(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type billingHistory struct {
	Entries   []models.LedgerEntry    `json:"entries"`
	Donations []models.DonationRecord `json:"donations"`
	Orders    []models.EscrowedOrder  `json:"orders"`
}

func (h *Handler) BillingHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var (
		history billingHistory
		err     error
	)
	if history.Entries, err = h.ledger.History(r.Context(), identity.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if history.Donations, err = h.ledger.Donations(r.Context(), identity.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if history.Orders, err = h.orders.ListMine(r.Context(), identity.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.ledger.RecordDonation(r.Context(), identity.UserID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount    decimal.Decimal `json:"amount"`
		AccountID string          `json:"account_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.ledger.RequestWithdrawal(r.Context(), identity.UserID, req.Amount, req.AccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}
