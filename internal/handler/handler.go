package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/auth"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
	"github.com/honeynil/ReWearExchange/internal/models"
	service "github.com/honeynil/ReWearExchange/internal/services"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

type Handler struct {
	listings  service.ListingService
	payments  service.PaymentService
	orders    service.OrderService
	ledger    service.LedgerService
	exchanges service.ExchangeService
	admin     service.AdminService
}

func NewHandler(
	listings service.ListingService,
	payments service.PaymentService,
	orders service.OrderService,
	ledger service.LedgerService,
	exchanges service.ExchangeService,
	admin service.AdminService,
) *Handler {
	return &Handler{
		listings:  listings,
		payments:  payments,
		orders:    orders,
		ledger:    ledger,
		exchanges: exchanges,
		admin:     admin,
	}
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := pkgerrors.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.WithContext(r.Context(), "request_id", r.Header.Get("X-Request-ID")).
			Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = pkgerrors.ErrInternal.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Code: pkgerrors.Code(err), Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id", pkgerrors.ErrInvalidInput)
	}
	return id, nil
}

// caller returns the authenticated identity or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, pkgerrors.ErrUnauthorized)
	}
	return identity, ok
}

// RegisterPublicRoutes expects OptionalAuth on r.
func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/listings", h.BrowseListings).Methods("GET")
	r.HandleFunc("/listings/{id:[0-9]+}", h.GetListing).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/listings", h.SubmitListing).Methods("POST")
	r.HandleFunc("/listings/{id:[0-9]+}", h.UpdateListing).Methods("PUT")
	r.HandleFunc("/listings/{id:[0-9]+}", h.DeleteListing).Methods("DELETE")
	r.HandleFunc("/listings/{id:[0-9]+}/delist", h.DelistListing).Methods("PUT")
	r.HandleFunc("/listings/{id:[0-9]+}/relist", h.RelistListing).Methods("PUT")
	r.HandleFunc("/my/listings", h.MyListings).Methods("GET")
	r.HandleFunc("/exchange/listings", h.ExchangeListings).Methods("GET")
	r.HandleFunc("/my/exchange-listings", h.MyExchangeListings).Methods("GET")

	r.HandleFunc("/payments/init", h.InitPayment).Methods("POST")
	r.HandleFunc("/payments/{token}/authorize", h.AuthorizePayment).Methods("POST")
	r.HandleFunc("/payments/{token}/settle", h.SettlePayment).Methods("POST")

	r.HandleFunc("/my/orders", h.MyOrders).Methods("GET")
	r.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods("GET")
	r.HandleFunc("/orders/{id:[0-9]+}/ship", h.ShipOrder).Methods("PUT")
	r.HandleFunc("/orders/{id:[0-9]+}/confirm", h.ConfirmOrder).Methods("PUT")

	r.HandleFunc("/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/billing-history", h.BillingHistory).Methods("GET")
	r.HandleFunc("/donate", h.Donate).Methods("POST")
	r.HandleFunc("/withdraw", h.Withdraw).Methods("POST")

	r.HandleFunc("/exchanges", h.RequestExchange).Methods("POST")
	r.HandleFunc("/my/exchanges", h.MyExchanges).Methods("GET")
	r.HandleFunc("/exchanges/{id:[0-9]+}", h.RespondExchange).Methods("PUT")
	r.HandleFunc("/exchanges/{id:[0-9]+}/confirm", h.ConfirmExchange).Methods("PUT")
	r.HandleFunc("/exchanges/{id:[0-9]+}/thread", h.ExchangeThread).Methods("GET")
}

// RegisterAdminRoutes expects AuthMiddleware and AdminOnly on r.
func (h *Handler) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/listings/pending", h.PendingListings).Methods("GET")
	r.HandleFunc("/listings/{id:[0-9]+}/approve", h.ApproveListing).Methods("PUT")
	r.HandleFunc("/listings/{id:[0-9]+}/reject", h.RejectListing).Methods("PUT")
	r.HandleFunc("/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/users/{id:[0-9]+}/details", h.UserDetails).Methods("GET")
}
