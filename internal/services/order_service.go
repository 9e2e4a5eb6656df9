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

type OrderService interface {
	Ship(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error)
	ConfirmReceipt(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error)
	Get(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error)
	ListMine(ctx context.Context, userID int64) ([]models.EscrowedOrder, error)
}

type orderService struct {
	store  repository.Store
	cache  BalanceCache
	events eventPublisher
}

func NewOrderService(store repository.Store, cache BalanceCache, producer kafka.KafkaProducer) *orderService {
	return &orderService{
		store:  store,
		cache:  cache,
		events: eventPublisher{producer: producer},
	}
}

func (s *orderService) Ship(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "Ship")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		failSpan(span, err, "order lookup failed")
		return nil, err
	}
	if order.SellerID != actorID {
		return nil, pkgerrors.ErrForbidden
	}
	if order.Status != models.OrderHeld {
		return nil, fmt.Errorf("%w: order is %s", pkgerrors.ErrInvalidState, order.Status)
	}
	if err := s.store.Orders().TransitionStatus(ctx, orderID, models.OrderHeld, models.OrderShipped); err != nil {
		failSpan(span, err, "ship transition failed")
		if errors.Is(err, pkgerrors.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: order changed concurrently", pkgerrors.ErrInvalidState)
		}
		return nil, err
	}
	order.Status = models.OrderShipped

	s.events.publish(ctx, models.TopicOrders, order.ID, models.EventOrderShipped, order)
	slog.Info("order shipped", "order_id", orderID, "seller_id", actorID)
	return order, nil
}

// ConfirmReceipt releases escrow to the seller. Release from held skips the
// shipping step.
func (s *orderService) ConfirmReceipt(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "ConfirmReceipt")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		failSpan(span, err, "order lookup failed")
		return nil, err
	}
	if order.BuyerID != actorID {
		return nil, pkgerrors.ErrForbidden
	}
	if order.Status == models.OrderReleased {
		return nil, pkgerrors.ErrAlreadyReleased
	}

	credit := &models.LedgerEntry{
		UserID:    order.SellerID,
		Amount:    order.SellerCredit().Round(2),
		Kind:      models.KindSaleCredit,
		Status:    models.EntrySettled,
		Reference: fmt.Sprintf("order:%d", order.ID),
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Orders().TransitionStatus(ctx, orderID, order.Status, models.OrderReleased); err != nil {
			if !errors.Is(err, pkgerrors.ErrStatusConflict) {
				return err
			}
			current, getErr := tx.Orders().GetByID(ctx, orderID)
			if getErr != nil {
				return getErr
			}
			if current.Status == models.OrderReleased {
				return pkgerrors.ErrAlreadyReleased
			}
			return fmt.Errorf("%w: order changed concurrently", pkgerrors.ErrInvalidState)
		}
		if credit.Amount.IsPositive() {
			if err := postEntry(ctx, tx, credit); err != nil {
				return err
			}
		}
		return tx.Users().AddCreditScore(ctx, order.SellerID, models.CreditScoreReward)
	})
	if err != nil {
		observability.SettlementOutcomes.WithLabelValues("release", pkgerrors.Code(err)).Inc()
		failSpan(span, err, "release failed")
		slog.Error("failed to release funds", "order_id", orderID, "buyer_id", actorID, "error", err)
		return nil, err
	}
	order.Status = models.OrderReleased

	s.cache.Invalidate(ctx, order.SellerID)
	s.events.publish(ctx, models.TopicOrders, order.ID, models.EventOrderReleased, order)
	if credit.ID != 0 {
		s.events.ledgerPosted(ctx, credit)
	}

	observability.SettlementOutcomes.WithLabelValues("release", "success").Inc()
	slog.Info("funds released",
		"order_id", orderID,
		"seller_id", order.SellerID,
		"credit", credit.Amount.StringFixed(2))
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID, actorID int64) (*models.EscrowedOrder, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actorID) {
		return nil, pkgerrors.ErrForbidden
	}
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, userID int64) ([]models.EscrowedOrder, error) {
	return s.store.Orders().ListByUser(ctx, userID)
}
