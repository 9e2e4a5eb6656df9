package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type LedgerRepository struct {
	db dbtx
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const entryColumns = `id, user_id, amount, kind, status, reference, payout_instrument, created_at`

func (r *LedgerRepository) Append(ctx context.Context, e *models.LedgerEntry) (err error) {
	ctx, done := observe(ctx, "ledger-repository", "AppendEntry")
	defer done(&err)

	if e == nil || !e.Kind.Valid() {
		err = fmt.Errorf("%w: invalid ledger entry", pkgerrors.ErrInvalidInput)
		return err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("user_id", e.UserID),
		attribute.String("amount", e.Amount.String()),
		attribute.String("kind", string(e.Kind)),
	)

	query := `
	INSERT INTO ledger_entries (user_id, amount, kind, status, reference, payout_instrument)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		e.UserID, e.Amount, string(e.Kind), string(e.Status), e.Reference, e.PayoutInstrument,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		slog.Error("failed to append ledger entry", "method", "Append", "user_id", e.UserID, "kind", e.Kind, "error", err)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64) (_ []models.LedgerEntry, err error) {
	ctx, done := observe(ctx, "ledger-repository", "ListEntriesByUser")
	defer done(&err)

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list ledger entries", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Kind, &e.Status, &e.Reference, &e.PayoutInstrument, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepository) SumByUser(ctx context.Context, userID int64) (_ decimal.Decimal, err error) {
	ctx, done := observe(ctx, "ledger-repository", "SumEntriesByUser")
	defer done(&err)

	var sum decimal.Decimal
	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		slog.Error("failed to sum ledger entries", "method", "SumByUser", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func (r *LedgerRepository) CreateDonation(ctx context.Context, d *models.DonationRecord) (err error) {
	ctx, done := observe(ctx, "ledger-repository", "CreateDonation")
	defer done(&err)

	query := `
	INSERT INTO donations (user_id, order_id, amount, source)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query, d.UserID, d.OrderID, d.Amount, string(d.Source)).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		slog.Error("failed to record donation", "method", "CreateDonation", "user_id", d.UserID, "error", err)
		return fmt.Errorf("failed to record donation: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListDonations(ctx context.Context, userID int64) (_ []models.DonationRecord, err error) {
	ctx, done := observe(ctx, "ledger-repository", "ListDonations")
	defer done(&err)

	query := `SELECT id, user_id, order_id, amount, source, created_at FROM donations
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list donations", "method", "ListDonations", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	var donations []models.DonationRecord
	for rows.Next() {
		var (
			d       models.DonationRecord
			orderID sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &orderID, &d.Amount, &d.Source, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		if orderID.Valid {
			id := orderID.Int64
			d.OrderID = &id
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (r *LedgerRepository) SumDonations(ctx context.Context, userID int64) (_ decimal.Decimal, err error) {
	ctx, done := observe(ctx, "ledger-repository", "SumDonations")
	defer done(&err)

	var sum decimal.Decimal
	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM donations WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		slog.Error("failed to sum donations", "method", "SumDonations", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum donations: %w", err)
	}
	return sum, nil
}
