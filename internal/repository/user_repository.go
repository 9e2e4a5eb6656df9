package repository

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// ChangeBalance applies delta only if the result stays non-negative.
	ChangeBalance(ctx context.Context, userID int64, delta decimal.Decimal) (newBalance decimal.Decimal, err error)
	AddCreditScore(ctx context.Context, userID int64, delta int) error
}
