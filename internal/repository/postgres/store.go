package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
	"github.com/honeynil/ReWearExchange/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db *sql.DB
	q  dbtx
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() repository.UserRepository         { return &UserRepository{db: s.q} }
func (s *Store) Listings() repository.ListingRepository   { return &ListingRepository{db: s.q} }
func (s *Store) Orders() repository.OrderRepository       { return &OrderRepository{db: s.q} }
func (s *Store) Exchanges() repository.ExchangeRepository { return &ExchangeRepository{db: s.q} }
func (s *Store) Ledger() repository.LedgerRepository      { return &LedgerRepository{db: s.q} }

// WithinTx runs fn in one database transaction. Nested calls reuse the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}

	ctx, done := observe(ctx, "store", "WithinTx")
	defer done(&err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "WithinTx", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("failed to rollback transaction", "method", "WithinTx", "error", rbErr)
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "WithinTx", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// observe opens a span and returns a closure that records the call outcome
// in the span and in the repository metrics.
func observe(ctx context.Context, tracerName, method string) (context.Context, func(*error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method)
	start := time.Now()

	return ctx, func(errp *error) {
		status := "success"
		if errp != nil && *errp != nil {
			status = "error"
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
