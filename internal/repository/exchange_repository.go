package repository

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
)

type ExchangeRepository interface {
	Create(ctx context.Context, req *models.ExchangeRequest) error
	GetByID(ctx context.Context, id int64) (*models.ExchangeRequest, error)
	ListByUser(ctx context.Context, userID int64) ([]models.ExchangeRequest, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.ExchangeStatus) error
	// SetConfirmation raises one party's flag while the request is accepted
	// and returns the row as it is after the update.
	SetConfirmation(ctx context.Context, id int64, party models.ExchangeParty) (*models.ExchangeRequest, error)
}
