package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ListingRepository struct {
	db dbtx
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

const listingColumns = `id, owner_id, title, description, category, brand, size, item_condition, image_url,
	price, is_exchangeable, status, moderation_code, moderation_confidence, is_deleted, version, created_at, updated_at`

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category, &l.Brand, &l.Size, &l.Condition, &l.ImageURL,
		&l.Price, &l.Exchangeable, &l.Status, &l.ModerationCode, &l.ModerationConfidence, &l.Deleted, &l.Version,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) (err error) {
	ctx, done := observe(ctx, "listing-repository", "CreateListing")
	defer done(&err)

	query := `
	INSERT INTO listings (owner_id, title, description, category, brand, size, item_condition, image_url,
		price, is_exchangeable, status, moderation_code, moderation_confidence)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id, version, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		l.OwnerID, l.Title, l.Description, l.Category, l.Brand, l.Size, l.Condition, l.ImageURL,
		l.Price, l.Exchangeable, string(l.Status), l.ModerationCode, l.ModerationConfidence,
	).Scan(&l.ID, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		slog.Error("failed to create listing", "method", "Create", "owner_id", l.OwnerID, "error", err)
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id int64) (_ *models.Listing, err error) {
	ctx, done := observe(ctx, "listing-repository", "GetListingByID")
	defer done(&err)

	l, err := scanListing(r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrListingNotFound
	case err != nil:
		slog.Error("failed to get listing", "method", "GetByID", "listing_id", id, "error", err)
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepository) List(ctx context.Context, q models.ListingQuery) (_ []models.Listing, err error) {
	ctx, done := observe(ctx, "listing-repository", "ListListings")
	defer done(&err)

	query := `SELECT ` + listingColumns + ` FROM listings WHERE is_deleted = FALSE`
	var args []any
	where := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if q.Status != "" {
		where("status = $%d", string(q.Status))
	}
	if q.OwnerID != 0 {
		where("owner_id = $%d", q.OwnerID)
	}
	if q.ExcludeOwnerID != 0 {
		where("owner_id <> $%d", q.ExcludeOwnerID)
	}
	if q.ExchangeableOnly {
		query += " AND is_exchangeable = TRUE"
	}
	if q.Category != "" {
		where("category = $%d", q.Category)
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d OR brand ILIKE $%d)", n, n, n)
	}
	if q.OldestFirst {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to list listings", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (r *ListingRepository) TransitionStatus(ctx context.Context, id int64, from, to models.ListingStatus) (err error) {
	ctx, done := observe(ctx, "listing-repository", "TransitionListingStatus")
	defer done(&err)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("listing_id", id),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	query := `
		UPDATE listings
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND is_deleted = FALSE
		`
	return r.execConditional(ctx, "TransitionStatus", id, query, string(to), id, string(from))
}

func (r *ListingRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (err error) {
	ctx, done := observe(ctx, "listing-repository", "UpdateListingPrice")
	defer done(&err)

	query := `
		UPDATE listings
		SET price = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = FALSE AND status <> 'sold'
		`
	return r.execConditional(ctx, "UpdatePrice", id, query, price, id)
}

func (r *ListingRepository) SetExchangeable(ctx context.Context, id int64, exchangeable bool) (err error) {
	ctx, done := observe(ctx, "listing-repository", "SetListingExchangeable")
	defer done(&err)

	query := `
		UPDATE listings
		SET is_exchangeable = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = FALSE AND status <> 'sold'
		`
	return r.execConditional(ctx, "SetExchangeable", id, query, exchangeable, id)
}

func (r *ListingRepository) SoftDelete(ctx context.Context, id int64) (err error) {
	ctx, done := observe(ctx, "listing-repository", "SoftDeleteListing")
	defer done(&err)

	query := `
		UPDATE listings
		SET is_deleted = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		`
	return r.execConditional(ctx, "SoftDelete", id, query, id)
}

// execConditional runs a guarded update that must touch exactly one row.
func (r *ListingRepository) execConditional(ctx context.Context, method string, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to update listing", "method", method, "listing_id", id, "error", err)
		return fmt.Errorf("failed to update listing: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.ErrStatusConflict
	}
	return nil
}
