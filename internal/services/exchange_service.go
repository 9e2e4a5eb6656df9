package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/kafka"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type ExchangeService interface {
	Request(ctx context.Context, requesterID int64, proposal models.ExchangeProposal) (*models.ExchangeRequest, error)
	Respond(ctx context.Context, id, actorID int64, decision models.ExchangeStatus) (*models.ExchangeRequest, error)
	// Confirm records the caller's confirmation and reports whether the
	// exchange is now completed.
	Confirm(ctx context.Context, id, actorID int64) (bool, error)
	ListMine(ctx context.Context, userID int64) ([]models.ExchangeRequest, error)
	AuthorizeThread(ctx context.Context, id, actorID int64) (*models.ExchangeRequest, error)
}

type exchangeService struct {
	store  repository.Store
	events eventPublisher
}

func NewExchangeService(store repository.Store, producer kafka.KafkaProducer) *exchangeService {
	return &exchangeService{
		store:  store,
		events: eventPublisher{producer: producer},
	}
}

func (s *exchangeService) Request(ctx context.Context, requesterID int64, p models.ExchangeProposal) (*models.ExchangeRequest, error) {
	ctx, span := otel.Tracer("exchange-service").Start(ctx, "Request")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("requester_listing_id", p.RequesterListingID),
		attribute.Int64("receiver_listing_id", p.ReceiverListingID),
	)

	mine, err := s.exchangeable(ctx, p.RequesterListingID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.exchangeable(ctx, p.ReceiverListingID)
	if err != nil {
		return nil, err
	}
	switch {
	case mine.OwnerID != requesterID:
		return nil, fmt.Errorf("%w: offered listing is not yours", pkgerrors.ErrNotExchangeable)
	case theirs.OwnerID == requesterID:
		return nil, fmt.Errorf("%w: cannot exchange with yourself", pkgerrors.ErrNotExchangeable)
	case p.ReceiverID != 0 && theirs.OwnerID != p.ReceiverID:
		return nil, fmt.Errorf("%w: receiver does not own the requested listing", pkgerrors.ErrNotExchangeable)
	}

	req := &models.ExchangeRequest{
		RequesterID:        requesterID,
		ReceiverID:         theirs.OwnerID,
		RequesterListingID: mine.ID,
		ReceiverListingID:  theirs.ID,
		Status:             models.ExchangePending,
	}
	if err := s.store.Exchanges().Create(ctx, req); err != nil {
		failSpan(span, err, "exchange creation failed")
		return nil, err
	}

	s.events.publish(ctx, models.TopicExchanges, req.ID, models.EventExchangeRequested, req)
	slog.Info("exchange requested", "exchange_id", req.ID, "requester_id", requesterID, "receiver_id", req.ReceiverID)
	return req, nil
}

// exchangeable loads a listing that can currently be offered in an exchange.
func (s *exchangeService) exchangeable(ctx context.Context, listingID int64) (*models.Listing, error) {
	listing, err := s.store.Listings().GetByID(ctx, listingID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: listing %d not found", pkgerrors.ErrNotExchangeable, listingID)
	}
	if err != nil {
		return nil, err
	}
	if !listing.Visible() || !listing.Exchangeable {
		return nil, fmt.Errorf("%w: listing %d", pkgerrors.ErrNotExchangeable, listingID)
	}
	return listing, nil
}

func (s *exchangeService) Respond(ctx context.Context, id, actorID int64, decision models.ExchangeStatus) (*models.ExchangeRequest, error) {
	ctx, span := otel.Tracer("exchange-service").Start(ctx, "Respond")
	defer span.End()

	if decision != models.ExchangeAccepted && decision != models.ExchangeRejected {
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", pkgerrors.ErrInvalidInput)
	}
	req, err := s.store.Exchanges().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actorID {
		return nil, pkgerrors.ErrForbidden
	}
	if req.Status != models.ExchangePending {
		return nil, fmt.Errorf("%w: request is %s", pkgerrors.ErrInvalidState, req.Status)
	}
	if err := s.store.Exchanges().TransitionStatus(ctx, id, models.ExchangePending, decision); err != nil {
		failSpan(span, err, "respond transition failed")
		if errors.Is(err, pkgerrors.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: request changed concurrently", pkgerrors.ErrInvalidState)
		}
		return nil, err
	}
	req.Status = decision

	s.events.publish(ctx, models.TopicExchanges, req.ID, models.EventExchangeResponded, req)
	slog.Info("exchange answered", "exchange_id", id, "status", decision)
	return req, nil
}

func (s *exchangeService) Confirm(ctx context.Context, id, actorID int64) (bool, error) {
	ctx, span := otel.Tracer("exchange-service").Start(ctx, "Confirm")
	defer span.End()
	span.SetAttributes(attribute.Int64("exchange_id", id))

	req, err := s.store.Exchanges().GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	party, ok := req.PartyOf(actorID)
	if !ok {
		return false, pkgerrors.ErrForbidden
	}
	switch req.Status {
	case models.ExchangeCompleted:
		return true, nil
	case models.ExchangeAccepted:
	default:
		return false, fmt.Errorf("%w: request is %s", pkgerrors.ErrInvalidState, req.Status)
	}

	var completed bool
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		updated, err := tx.Exchanges().SetConfirmation(ctx, id, party)
		if errors.Is(err, pkgerrors.ErrStatusConflict) {
			return s.alreadyCompleted(ctx, tx, id, &completed)
		}
		if err != nil {
			return err
		}
		req = updated
		if !updated.BothConfirmed() {
			return nil
		}

		if err := tx.Exchanges().TransitionStatus(ctx, id, models.ExchangeAccepted, models.ExchangeCompleted); err != nil {
			if errors.Is(err, pkgerrors.ErrStatusConflict) {
				return s.alreadyCompleted(ctx, tx, id, &completed)
			}
			return err
		}
		for _, listingID := range []int64{req.RequesterListingID, req.ReceiverListingID} {
			if err := markSold(ctx, tx, listingID); err != nil {
				if errors.Is(err, pkgerrors.ErrNotAvailable) {
					return fmt.Errorf("%w: listing %d is no longer available", pkgerrors.ErrNotExchangeable, listingID)
				}
				return err
			}
		}
		for _, userID := range []int64{req.RequesterID, req.ReceiverID} {
			if err := tx.Users().AddCreditScore(ctx, userID, models.CreditScoreReward); err != nil {
				return err
			}
		}
		req.Status = models.ExchangeCompleted
		completed = true
		return nil
	})
	if err != nil {
		observability.SettlementOutcomes.WithLabelValues("exchange", pkgerrors.Code(err)).Inc()
		failSpan(span, err, "confirm failed")
		slog.Error("exchange confirmation failed", "exchange_id", id, "actor_id", actorID, "error", err)
		return false, err
	}

	if completed && req.Status == models.ExchangeCompleted {
		observability.SettlementOutcomes.WithLabelValues("exchange", "success").Inc()
		s.events.publish(ctx, models.TopicExchanges, req.ID, models.EventExchangeCompleted, req)
		slog.Info("exchange completed", "exchange_id", id)
	}
	return completed, nil
}

// alreadyCompleted resolves a lost race on the request row: completion by
// the other party is success, anything else is a state error.
func (s *exchangeService) alreadyCompleted(ctx context.Context, tx repository.Store, id int64, completed *bool) error {
	current, err := tx.Exchanges().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == models.ExchangeCompleted {
		*completed = true
		return nil
	}
	return fmt.Errorf("%w: request is %s", pkgerrors.ErrInvalidState, current.Status)
}

func (s *exchangeService) ListMine(ctx context.Context, userID int64) ([]models.ExchangeRequest, error) {
	return s.store.Exchanges().ListByUser(ctx, userID)
}

func (s *exchangeService) AuthorizeThread(ctx context.Context, id, actorID int64) (*models.ExchangeRequest, error) {
	req, err := s.store.Exchanges().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := req.PartyOf(actorID); !ok {
		return nil, pkgerrors.ErrForbidden
	}
	return req, nil
}
