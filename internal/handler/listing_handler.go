package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/auth"
	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
)

const maxImageSize = 5 << 20

type listingRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	Size         string          `json:"size"`
	Condition    string          `json:"condition"`
	ImageURL     string          `json:"image_url"`
	Price        decimal.Decimal `json:"price"`
	Exchangeable bool            `json:"is_exchangeable"`
	ImageBase64  string          `json:"image_base64"`
}

func (req listingRequest) draft() models.ListingDraft {
	return models.ListingDraft{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Brand:        req.Brand,
		Size:         req.Size,
		Condition:    req.Condition,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		Exchangeable: req.Exchangeable,
	}
}

// readListing accepts either a multipart form with an "image" file or a JSON
// body with a base64 image.
func readListing(r *http.Request) (models.ListingDraft, []byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req listingRequest
		if err := decode(r, &req); err != nil {
			return models.ListingDraft{}, nil, err
		}
		var image []byte
		if req.ImageBase64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
			if err != nil {
				return models.ListingDraft{}, nil, fmt.Errorf("%w: image is not valid base64", pkgerrors.ErrInvalidInput)
			}
			image = decoded
		}
		return req.draft(), image, nil
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return models.ListingDraft{}, nil, fmt.Errorf("%w: malformed form", pkgerrors.ErrInvalidInput)
	}
	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		return models.ListingDraft{}, nil, fmt.Errorf("%w: price must be a number", pkgerrors.ErrInvalidInput)
	}
	exchangeable, _ := strconv.ParseBool(r.FormValue("is_exchangeable"))
	draft := models.ListingDraft{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Category:     r.FormValue("category"),
		Brand:        r.FormValue("brand"),
		Size:         r.FormValue("size"),
		Condition:    r.FormValue("condition"),
		ImageURL:     r.FormValue("image_url"),
		Price:        price,
		Exchangeable: exchangeable,
	}

	file, _, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return draft, nil, nil
	}
	if err != nil {
		return models.ListingDraft{}, nil, fmt.Errorf("%w: unreadable image", pkgerrors.ErrInvalidInput)
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		return models.ListingDraft{}, nil, fmt.Errorf("%w: unreadable image", pkgerrors.ErrInvalidInput)
	}
	return draft, image, nil
}

func (h *Handler) SubmitListing(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	draft, image, err := readListing(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.listings.Submit(r.Context(), identity.UserID, draft, image)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *Handler) BrowseListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listings, err := h.listings.Browse(r.Context(), q.Get("category"), q.Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	viewer, _ := auth.IdentityFrom(r.Context())
	listing, err := h.listings.Get(r.Context(), id, viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) MyListings(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	listings, err := h.listings.ListMine(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) ExchangeListings(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	listings, err := h.listings.ListExchangeable(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) MyExchangeListings(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	listings, err := h.listings.ListMyExchangeable(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// UpdateListing changes price and/or the exchangeable flag.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
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
		Price        *decimal.Decimal `json:"price"`
		Exchangeable *bool            `json:"is_exchangeable"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Price == nil && req.Exchangeable == nil {
		h.writeError(w, r, fmt.Errorf("%w: nothing to update", pkgerrors.ErrInvalidInput))
		return
	}

	var listing *models.Listing
	if req.Price != nil {
		if listing, err = h.listings.EditPrice(r.Context(), id, identity.UserID, *req.Price); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if req.Exchangeable != nil {
		if listing, err = h.listings.SetExchangeable(r.Context(), id, identity.UserID, *req.Exchangeable); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) DelistListing(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.listings.Delist)
}

func (h *Handler) RelistListing(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.listings.Relist)
}

func (h *Handler) ownerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id, actorID int64) (*models.Listing, error)) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := action(r.Context(), id, identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.listings.SoftDelete(r.Context(), id, identity.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
