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

type OrderRepository struct {
	db dbtx
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, buyer_id, seller_id, listing_id, amount, donation_share, status,
	payment_method, instrument_mask, phone, created_at, updated_at`

func scanOrder(row rowScanner) (*models.EscrowedOrder, error) {
	var o models.EscrowedOrder
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Amount, &o.DonationShare, &o.Status,
		&o.Method, &o.InstrumentMask, &o.Phone, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) Create(ctx context.Context, o *models.EscrowedOrder) (err error) {
	ctx, done := observe(ctx, "order-repository", "CreateOrder")
	defer done(&err)

	query := `
	INSERT INTO orders (buyer_id, seller_id, listing_id, amount, donation_share, status, payment_method, instrument_mask, phone)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		o.BuyerID, o.SellerID, o.ListingID, o.Amount, o.DonationShare, string(o.Status), string(o.Method), o.InstrumentMask, o.Phone,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		slog.Error("failed to create order", "method", "Create", "listing_id", o.ListingID, "buyer_id", o.BuyerID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (_ *models.EscrowedOrder, err error) {
	ctx, done := observe(ctx, "order-repository", "GetOrderByID")
	defer done(&err)

	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrOrderNotFound
	case err != nil:
		slog.Error("failed to get order", "method", "GetByID", "order_id", id, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) (_ []models.EscrowedOrder, err error) {
	ctx, done := observe(ctx, "order-repository", "ListOrdersByUser")
	defer done(&err)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list orders", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.EscrowedOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) TransitionStatus(ctx context.Context, id int64, from, to models.OrderStatus) (err error) {
	ctx, done := observe(ctx, "order-repository", "TransitionOrderStatus")
	defer done(&err)

	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		slog.Error("failed to update order status", "method", "TransitionStatus", "order_id", id, "error", err)
		return fmt.Errorf("failed to update order status: %w", err)
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
