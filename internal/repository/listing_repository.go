package repository

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/shopspring/decimal"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
	List(ctx context.Context, q models.ListingQuery) ([]models.Listing, error)
	// TransitionStatus moves a non-deleted listing from one status to another.
	// It returns ErrStatusConflict when the row is not in the from status.
	TransitionStatus(ctx context.Context, id int64, from, to models.ListingStatus) error
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error
	SetExchangeable(ctx context.Context, id int64, exchangeable bool) error
	SoftDelete(ctx context.Context, id int64) error
}
