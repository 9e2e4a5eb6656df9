package service

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"go.opentelemetry.io/otel"
)

type UserDetails struct {
	User      models.User              `json:"user"`
	Buying    []models.EscrowedOrder   `json:"buying"`
	Selling   []models.EscrowedOrder   `json:"selling"`
	Exchanges []models.ExchangeRequest `json:"exchanges"`
}

type AdminService interface {
	ListUsers(ctx context.Context, actor models.Identity) ([]models.User, error)
	UserDetails(ctx context.Context, actor models.Identity, userID int64) (*UserDetails, error)
}

type adminService struct {
	store repository.Store
}

func NewAdminService(store repository.Store) *adminService {
	return &adminService{store: store}
}

func (s *adminService) ListUsers(ctx context.Context, actor models.Identity) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.ErrForbidden
	}
	return s.store.Users().List(ctx)
}

func (s *adminService) UserDetails(ctx context.Context, actor models.Identity, userID int64) (*UserDetails, error) {
	ctx, span := otel.Tracer("admin-service").Start(ctx, "UserDetails")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, pkgerrors.ErrForbidden
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		failSpan(span, err, "order listing failed")
		return nil, err
	}
	exchanges, err := s.store.Exchanges().ListByUser(ctx, userID)
	if err != nil {
		failSpan(span, err, "exchange listing failed")
		return nil, err
	}

	details := &UserDetails{User: *user, Exchanges: exchanges}
	for _, o := range orders {
		if o.BuyerID == userID {
			details.Buying = append(details.Buying, o)
		} else {
			details.Selling = append(details.Selling, o)
		}
	}
	return details, nil
}
