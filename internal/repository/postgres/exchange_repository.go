package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

type ExchangeRepository struct {
	db dbtx
}

func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

const exchangeColumns = `id, requester_id, receiver_id, requester_listing_id, receiver_listing_id, status,
	requester_confirmed, receiver_confirmed, created_at, updated_at`

func scanExchange(row rowScanner) (*models.ExchangeRequest, error) {
	var e models.ExchangeRequest
	err := row.Scan(&e.ID, &e.RequesterID, &e.ReceiverID, &e.RequesterListingID, &e.ReceiverListingID, &e.Status,
		&e.RequesterConfirmed, &e.ReceiverConfirmed, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExchangeRepository) Create(ctx context.Context, req *models.ExchangeRequest) (err error) {
	ctx, done := observe(ctx, "exchange-repository", "CreateExchange")
	defer done(&err)

	query := `
	INSERT INTO exchange_requests (requester_id, receiver_id, requester_listing_id, receiver_listing_id, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		req.RequesterID, req.ReceiverID, req.RequesterListingID, req.ReceiverListingID, string(req.Status),
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		slog.Error("failed to create exchange request", "method", "Create", "requester_id", req.RequesterID, "error", err)
		return fmt.Errorf("failed to create exchange request: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) GetByID(ctx context.Context, id int64) (_ *models.ExchangeRequest, err error) {
	ctx, done := observe(ctx, "exchange-repository", "GetExchangeByID")
	defer done(&err)

	e, err := scanExchange(r.db.QueryRowContext(ctx, `SELECT `+exchangeColumns+` FROM exchange_requests WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrExchangeNotFound
	case err != nil:
		slog.Error("failed to get exchange request", "method", "GetByID", "exchange_id", id, "error", err)
		return nil, fmt.Errorf("failed to get exchange request: %w", err)
	}
	return e, nil
}

func (r *ExchangeRepository) ListByUser(ctx context.Context, userID int64) (_ []models.ExchangeRequest, err error) {
	ctx, done := observe(ctx, "exchange-repository", "ListExchangesByUser")
	defer done(&err)

	query := `SELECT ` + exchangeColumns + ` FROM exchange_requests
		WHERE requester_id = $1 OR receiver_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list exchange requests", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list exchange requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.ExchangeRequest
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange request: %w", err)
		}
		reqs = append(reqs, *e)
	}
	return reqs, rows.Err()
}

func (r *ExchangeRepository) TransitionStatus(ctx context.Context, id int64, from, to models.ExchangeStatus) (err error) {
	ctx, done := observe(ctx, "exchange-repository", "TransitionExchangeStatus")
	defer done(&err)

	query := `UPDATE exchange_requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		slog.Error("failed to update exchange status", "method", "TransitionStatus", "exchange_id", id, "error", err)
		return fmt.Errorf("failed to update exchange status: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		err = pkgerrors.ErrStatusConflict
		return err
	}
	return nil
}

func (r *ExchangeRepository) SetConfirmation(ctx context.Context, id int64, party models.ExchangeParty) (_ *models.ExchangeRequest, err error) {
	ctx, done := observe(ctx, "exchange-repository", "SetExchangeConfirmation")
	defer done(&err)

	column := "requester_confirmed"
	if party == models.PartyReceiver {
		column = "receiver_confirmed"
	}

	query := `UPDATE exchange_requests SET ` + column + ` = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + exchangeColumns
	e, err := scanExchange(r.db.QueryRowContext(ctx, query, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrStatusConflict
	case err != nil:
		slog.Error("failed to set confirmation", "method", "SetConfirmation", "exchange_id", id, "party", party, "error", err)
		return nil, fmt.Errorf("failed to set confirmation: %w", err)
	}
	return e, nil
}
