package repository

import (
	"context"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/shopspring/decimal"
)

type LedgerRepository interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID int64) ([]models.LedgerEntry, error)
	SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error)
	CreateDonation(ctx context.Context, donation *models.DonationRecord) error
	ListDonations(ctx context.Context, userID int64) ([]models.DonationRecord, error)
	SumDonations(ctx context.Context, userID int64) (decimal.Decimal, error)
}
