package repository

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.EscrowedOrder) error
	GetByID(ctx context.Context, id int64) (*models.EscrowedOrder, error)
	// ListByUser returns orders where the user is buyer or seller, newest first.
	ListByUser(ctx context.Context, userID int64) ([]models.EscrowedOrder, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.OrderStatus) error
}
