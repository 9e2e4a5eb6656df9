package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/moderation"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ListingService interface {
	Submit(ctx context.Context, ownerID int64, draft models.ListingDraft, image []byte) (*models.Listing, error)
	Get(ctx context.Context, id int64, viewer models.Identity) (*models.Listing, error)
	Browse(ctx context.Context, category, search string) ([]models.Listing, error)
	ListMine(ctx context.Context, ownerID int64) ([]models.Listing, error)
	ListExchangeable(ctx context.Context, viewerID int64) ([]models.Listing, error)
	ListMyExchangeable(ctx context.Context, ownerID int64) ([]models.Listing, error)
	PendingQueue(ctx context.Context, actor models.Identity) ([]models.Listing, error)
	Delist(ctx context.Context, id, actorID int64) (*models.Listing, error)
	Relist(ctx context.Context, id, actorID int64) (*models.Listing, error)
	EditPrice(ctx context.Context, id, actorID int64, price decimal.Decimal) (*models.Listing, error)
	SetExchangeable(ctx context.Context, id, actorID int64, exchangeable bool) (*models.Listing, error)
	SoftDelete(ctx context.Context, id, actorID int64) error
	Approve(ctx context.Context, id int64, actor models.Identity) (*models.Listing, error)
	Reject(ctx context.Context, id int64, actor models.Identity) (*models.Listing, error)
}

type listingService struct {
	store             repository.Store
	gateway           moderation.Gateway
	moderationTimeout time.Duration
}

func NewListingService(store repository.Store, gateway moderation.Gateway, moderationTimeout time.Duration) *listingService {
	return &listingService{
		store:             store,
		gateway:           gateway,
		moderationTimeout: moderationTimeout,
	}
}

func (s *listingService) Submit(ctx context.Context, ownerID int64, draft models.ListingDraft, image []byte) (*models.Listing, error) {
	ctx, span := otel.Tracer("listing-service").Start(ctx, "Submit")
	defer span.End()

	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" || draft.Price.IsNegative() {
		span.SetStatus(codes.Error, "invalid draft")
		return nil, fmt.Errorf("%w: title is required and price must not be negative", pkgerrors.ErrInvalidInput)
	}

	result := s.moderate(ctx, draft, image)
	listing := &models.Listing{
		OwnerID:              ownerID,
		Title:                draft.Title,
		Description:          draft.Description,
		Category:             draft.Category,
		Brand:                draft.Brand,
		Size:                 draft.Size,
		Condition:            draft.Condition,
		ImageURL:             draft.ImageURL,
		Price:                draft.Price.Round(2),
		Exchangeable:         draft.Exchangeable,
		Status:               result.Verdict.ListingStatus(),
		ModerationCode:       result.ReasonCode,
		ModerationConfidence: result.Confidence,
	}
	if err := s.store.Listings().Create(ctx, listing); err != nil {
		failSpan(span, err, "listing creation failed")
		slog.Error("failed to create listing", "owner_id", ownerID, "error", err)
		return nil, err
	}

	observability.ModerationVerdicts.WithLabelValues(string(result.Verdict), result.ReasonCode).Inc()
	span.SetAttributes(attribute.Int64("listing_id", listing.ID), attribute.String("status", string(listing.Status)))
	slog.Info("listing submitted",
		"listing_id", listing.ID,
		"owner_id", ownerID,
		"status", listing.Status,
		"reason_code", result.ReasonCode)
	return listing, nil
}

// moderate never fails: any gateway problem sends the listing to review.
func (s *listingService) moderate(ctx context.Context, draft models.ListingDraft, image []byte) models.ModerationResult {
	if len(image) == 0 {
		return models.ModerationResult{Verdict: models.VerdictNeedsReview, ReasonCode: models.ReasonUnverified}
	}

	mctx, cancel := context.WithTimeout(ctx, s.moderationTimeout)
	defer cancel()

	result, err := s.gateway.Moderate(mctx, moderation.Request{
		Image:    image,
		Category: draft.Category,
		Brand:    draft.Brand,
		Title:    draft.Title,
	})
	if err != nil {
		slog.Warn("moderation unavailable, sending listing to review", "error", err)
		return models.ModerationResult{Verdict: models.VerdictNeedsReview, ReasonCode: models.ReasonModerationUnavailable}
	}
	switch result.Verdict {
	case models.VerdictApproved, models.VerdictRejected:
	default:
		result.Verdict = models.VerdictNeedsReview
	}
	return result
}

func (s *listingService) Get(ctx context.Context, id int64, viewer models.Identity) (*models.Listing, error) {
	listing, err := s.store.Listings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Deleted {
		return nil, pkgerrors.ErrListingNotFound
	}
	if !listing.Visible() && listing.OwnerID != viewer.UserID && !viewer.IsAdmin() {
		return nil, pkgerrors.ErrListingNotFound
	}
	return listing, nil
}

func (s *listingService) Browse(ctx context.Context, category, search string) ([]models.Listing, error) {
	return s.store.Listings().List(ctx, models.ListingQuery{
		Status:   models.ListingApproved,
		Category: category,
		Search:   strings.TrimSpace(search),
	})
}

func (s *listingService) ListMine(ctx context.Context, ownerID int64) ([]models.Listing, error) {
	return s.store.Listings().List(ctx, models.ListingQuery{OwnerID: ownerID})
}

func (s *listingService) ListExchangeable(ctx context.Context, viewerID int64) ([]models.Listing, error) {
	return s.store.Listings().List(ctx, models.ListingQuery{
		Status:           models.ListingApproved,
		ExchangeableOnly: true,
		ExcludeOwnerID:   viewerID,
	})
}

func (s *listingService) ListMyExchangeable(ctx context.Context, ownerID int64) ([]models.Listing, error) {
	return s.store.Listings().List(ctx, models.ListingQuery{
		Status:           models.ListingApproved,
		ExchangeableOnly: true,
		OwnerID:          ownerID,
	})
}

func (s *listingService) PendingQueue(ctx context.Context, actor models.Identity) ([]models.Listing, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.ErrForbidden
	}
	return s.store.Listings().List(ctx, models.ListingQuery{Status: models.ListingPending, OldestFirst: true})
}

func (s *listingService) Delist(ctx context.Context, id, actorID int64) (*models.Listing, error) {
	return s.ownerTransition(ctx, "Delist", id, actorID, models.ListingApproved, models.ListingDelisted)
}

func (s *listingService) Relist(ctx context.Context, id, actorID int64) (*models.Listing, error) {
	return s.ownerTransition(ctx, "Relist", id, actorID, models.ListingDelisted, models.ListingApproved)
}

func (s *listingService) ownerTransition(ctx context.Context, op string, id, actorID int64, from, to models.ListingStatus) (*models.Listing, error) {
	ctx, span := otel.Tracer("listing-service").Start(ctx, op)
	defer span.End()

	listing, err := s.owned(ctx, id, actorID)
	if err != nil {
		failSpan(span, err, "ownership check failed")
		return nil, err
	}
	if listing.Status != from {
		return nil, fmt.Errorf("%w: listing is %s", pkgerrors.ErrInvalidState, listing.Status)
	}
	if err := s.store.Listings().TransitionStatus(ctx, id, from, to); err != nil {
		failSpan(span, err, "status transition failed")
		return nil, asInvalidState(err)
	}

	slog.Info("listing status changed", "listing_id", id, "from", from, "to", to, "actor_id", actorID)
	return s.store.Listings().GetByID(ctx, id)
}

func (s *listingService) EditPrice(ctx context.Context, id, actorID int64, price decimal.Decimal) (*models.Listing, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", pkgerrors.ErrInvalidInput)
	}
	listing, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if !listing.Editable() {
		return nil, fmt.Errorf("%w: sold listings cannot be edited", pkgerrors.ErrInvalidState)
	}
	if err := s.store.Listings().UpdatePrice(ctx, id, price.Round(2)); err != nil {
		return nil, asInvalidState(err)
	}
	return s.store.Listings().GetByID(ctx, id)
}

func (s *listingService) SetExchangeable(ctx context.Context, id, actorID int64, exchangeable bool) (*models.Listing, error) {
	listing, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if !listing.Editable() {
		return nil, fmt.Errorf("%w: sold listings cannot be edited", pkgerrors.ErrInvalidState)
	}
	if err := s.store.Listings().SetExchangeable(ctx, id, exchangeable); err != nil {
		return nil, asInvalidState(err)
	}
	return s.store.Listings().GetByID(ctx, id)
}

func (s *listingService) SoftDelete(ctx context.Context, id, actorID int64) error {
	if _, err := s.owned(ctx, id, actorID); err != nil {
		return err
	}
	if err := s.store.Listings().SoftDelete(ctx, id); err != nil {
		return asInvalidState(err)
	}
	slog.Info("listing deleted", "listing_id", id, "actor_id", actorID)
	return nil
}

func (s *listingService) Approve(ctx context.Context, id int64, actor models.Identity) (*models.Listing, error) {
	return s.review(ctx, id, actor, models.ListingApproved)
}

func (s *listingService) Reject(ctx context.Context, id int64, actor models.Identity) (*models.Listing, error) {
	return s.review(ctx, id, actor, models.ListingRejected)
}

func (s *listingService) review(ctx context.Context, id int64, actor models.Identity, to models.ListingStatus) (*models.Listing, error) {
	ctx, span := otel.Tracer("listing-service").Start(ctx, "Review")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, pkgerrors.ErrForbidden
	}
	listing, err := s.store.Listings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Deleted {
		return nil, pkgerrors.ErrListingNotFound
	}
	if listing.Status != models.ListingPending {
		return nil, fmt.Errorf("%w: only pending listings can be reviewed", pkgerrors.ErrInvalidState)
	}
	if err := s.store.Listings().TransitionStatus(ctx, id, models.ListingPending, to); err != nil {
		failSpan(span, err, "review transition failed")
		return nil, asInvalidState(err)
	}

	slog.Info("listing reviewed", "listing_id", id, "status", to, "admin_id", actor.UserID)
	return s.store.Listings().GetByID(ctx, id)
}

// owned loads a live listing and checks that actorID owns it.
func (s *listingService) owned(ctx context.Context, id, actorID int64) (*models.Listing, error) {
	listing, err := s.store.Listings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Deleted {
		return nil, pkgerrors.ErrListingNotFound
	}
	if listing.OwnerID != actorID {
		return nil, pkgerrors.ErrForbidden
	}
	return listing, nil
}

// markSold is the only way a listing becomes sold. It runs inside the
// caller's transaction; of two competing callers exactly one succeeds.
func markSold(ctx context.Context, tx repository.Store, listingID int64) error {
	err := tx.Listings().TransitionStatus(ctx, listingID, models.ListingApproved, models.ListingSold)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pkgerrors.ErrStatusConflict) {
		return err
	}

	listing, getErr := tx.Listings().GetByID(ctx, listingID)
	if getErr != nil {
		return getErr
	}
	if listing.Status == models.ListingSold {
		return pkgerrors.ErrAlreadySold
	}
	return fmt.Errorf("%w: listing is %s", pkgerrors.ErrNotAvailable, listing.Status)
}

func asInvalidState(err error) error {
	if errors.Is(err, pkgerrors.ErrStatusConflict) {
		return fmt.Errorf("%w: listing changed concurrently", pkgerrors.ErrInvalidState)
	}
	return err
}
