package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/kafka"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LedgerService interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, kind models.EntryKind, ref string) (*models.LedgerEntry, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, kind models.EntryKind, ref string) (*models.LedgerEntry, error)
	RecordDonation(ctx context.Context, userID int64, amount decimal.Decimal) (*models.LedgerEntry, error)
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, instrument string) (*models.LedgerEntry, error)
	Balance(ctx context.Context, userID int64) (*models.BalanceSummary, error)
	History(ctx context.Context, userID int64) ([]models.LedgerEntry, error)
	Donations(ctx context.Context, userID int64) ([]models.DonationRecord, error)
	RecomputeBalance(ctx context.Context, userID int64) (bool, error)
}

type ledgerService struct {
	store         repository.Store
	cache         BalanceCache
	events        eventPublisher
	payoutPattern *regexp.Regexp
}

func NewLedgerService(store repository.Store, cache BalanceCache, producer kafka.KafkaProducer, payoutPattern string) (*ledgerService, error) {
	pattern, err := regexp.Compile(payoutPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid payout pattern: %w", err)
	}
	return &ledgerService{
		store:         store,
		cache:         cache,
		events:        eventPublisher{producer: producer},
		payoutPattern: pattern,
	}, nil
}

// postEntry changes the cached balance and appends the entry in tx.
// A debit that would overdraw fails before anything is written.
func postEntry(ctx context.Context, tx repository.Store, entry *models.LedgerEntry) error {
	if _, err := tx.Users().ChangeBalance(ctx, entry.UserID, entry.Amount); err != nil {
		return err
	}
	return tx.Ledger().Append(ctx, entry)
}

func (s *ledgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, kind models.EntryKind, ref string) (*models.LedgerEntry, error) {
	if !kind.Valid() || !kind.IsCredit() {
		return nil, fmt.Errorf("%w: %s is not a credit kind", pkgerrors.ErrInvalidInput, kind)
	}
	return s.post(ctx, "Credit", &models.LedgerEntry{
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Status:    models.EntrySettled,
		Reference: ref,
	}, nil)
}

func (s *ledgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, kind models.EntryKind, ref string) (*models.LedgerEntry, error) {
	if !kind.Valid() || kind.IsCredit() {
		return nil, fmt.Errorf("%w: %s is not a debit kind", pkgerrors.ErrInvalidInput, kind)
	}
	return s.post(ctx, "Debit", &models.LedgerEntry{
		UserID:    userID,
		Amount:    amount.Neg(),
		Kind:      kind,
		Status:    models.EntrySettled,
		Reference: ref,
	}, nil)
}

func (s *ledgerService) RecordDonation(ctx context.Context, userID int64, amount decimal.Decimal) (*models.LedgerEntry, error) {
	return s.post(ctx, "RecordDonation", &models.LedgerEntry{
		UserID: userID,
		Amount: amount.Neg(),
		Kind:   models.KindDonation,
		Status: models.EntrySettled,
	}, &models.DonationRecord{
		UserID: userID,
		Amount: amount.Round(2),
		Source: models.DonationManual,
	})
}

func (s *ledgerService) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, instrument string) (*models.LedgerEntry, error) {
	if !s.payoutPattern.MatchString(instrument) {
		return nil, pkgerrors.ErrInvalidInstrument
	}
	return s.post(ctx, "RequestWithdrawal", &models.LedgerEntry{
		UserID:           userID,
		Amount:           amount.Neg(),
		Kind:             models.KindWithdrawal,
		Status:           models.EntryPending,
		PayoutInstrument: instrument,
	}, nil)
}

func (s *ledgerService) post(ctx context.Context, op string, entry *models.LedgerEntry, donation *models.DonationRecord) (*models.LedgerEntry, error) {
	ctx, span := otel.Tracer("ledger-service").Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", entry.UserID),
		attribute.String("kind", string(entry.Kind)),
		attribute.String("amount", entry.Amount.String()),
	)

	entry.Amount = entry.Amount.Round(2)
	if entry.Amount.IsZero() || (entry.Kind.IsCredit() != entry.Amount.IsPositive()) {
		span.SetStatus(codes.Error, "non-positive amount")
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := postEntry(ctx, tx, entry); err != nil {
			return err
		}
		if donation != nil {
			return tx.Ledger().CreateDonation(ctx, donation)
		}
		return nil
	})
	if err != nil {
		failSpan(span, err, "ledger post failed")
		slog.Error("failed to post ledger entry",
			"method", op,
			"user_id", entry.UserID,
			"kind", entry.Kind,
			"amount", entry.Amount.String(),
			"error", err)
		return nil, err
	}

	s.cache.Invalidate(ctx, entry.UserID)
	s.events.ledgerPosted(ctx, entry)

	slog.Info("ledger entry posted",
		"entry_id", entry.ID,
		"user_id", entry.UserID,
		"kind", entry.Kind,
		"amount", entry.Amount.StringFixed(2))
	return entry, nil
}

func (s *ledgerService) Balance(ctx context.Context, userID int64) (*models.BalanceSummary, error) {
	ctx, span := otel.Tracer("ledger-service").Start(ctx, "Balance")
	defer span.End()

	if cached, ok := s.cache.Get(ctx, userID); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, nil
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		failSpan(span, err, "user lookup failed")
		return nil, err
	}
	donations, err := s.store.Ledger().SumDonations(ctx, userID)
	if err != nil {
		failSpan(span, err, "donation sum failed")
		return nil, err
	}

	summary := &models.BalanceSummary{
		UserID:         userID,
		Balance:        user.Balance,
		TotalDonations: donations,
	}
	s.cache.Set(ctx, summary)
	return summary, nil
}

func (s *ledgerService) History(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	return s.store.Ledger().ListByUser(ctx, userID)
}

func (s *ledgerService) Donations(ctx context.Context, userID int64) ([]models.DonationRecord, error) {
	return s.store.Ledger().ListDonations(ctx, userID)
}

// RecomputeBalance reports whether the stored balance equals the sum of the
// user's entries.
func (s *ledgerService) RecomputeBalance(ctx context.Context, userID int64) (bool, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	sum, err := s.store.Ledger().SumByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.Balance.Equal(sum) {
		slog.Error("balance drift detected",
			"user_id", userID,
			"balance", user.Balance.String(),
			"ledger_sum", sum.String())
		return false, nil
	}
	return true, nil
}
