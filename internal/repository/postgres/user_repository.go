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

type UserRepository struct {
	db dbtx
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, balance, credit_score, is_admin, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Balance, &u.CreditScore, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := observe(ctx, "user-repository", "CreateUser")
	defer done(&err)

	if user == nil || user.Username == "" {
		err = fmt.Errorf("%w: username is required", pkgerrors.ErrInvalidInput)
		return err
	}

	query := `
	INSERT INTO users (username, email, balance, credit_score, is_admin)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.Balance, user.CreditScore, user.IsAdmin,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		slog.Error("failed to create user", "method", "Create", "username", user.Username, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (_ *models.User, err error) {
	ctx, done := observe(ctx, "user-repository", "GetUserByID")
	defer done(&err)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		slog.Error("failed to get user", "method", "GetByID", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) (_ []models.User, err error) {
	ctx, done := observe(ctx, "user-repository", "ListUsers")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		slog.Error("failed to list users", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ChangeBalance(ctx context.Context, userID int64, delta decimal.Decimal) (newBalance decimal.Decimal, err error) {
	ctx, done := observe(ctx, "user-repository", "ChangeBalance")
	defer done(&err)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("delta", delta.String()),
	)

	query := `
		UPDATE users
		SET balance = balance + $1
		WHERE id = $2
		AND (balance + $1) >= 0
		RETURNING balance
		`
	err = r.db.QueryRowContext(ctx, query, delta, userID).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return decimal.Zero, fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			err = pkgerrors.ErrUserNotFound
			return decimal.Zero, err
		}
		err = pkgerrors.ErrInsufficientFunds
		slog.Warn("balance change rejected", "user_id", userID, "delta", delta.String())
		return decimal.Zero, err
	}
	if err != nil {
		slog.Error("failed to change balance", "method", "ChangeBalance", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to change balance: %w", err)
	}
	return newBalance, nil
}

func (r *UserRepository) AddCreditScore(ctx context.Context, userID int64, delta int) (err error) {
	ctx, done := observe(ctx, "user-repository", "AddCreditScore")
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `UPDATE users SET credit_score = credit_score + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		slog.Error("failed to update credit score", "method", "AddCreditScore", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update credit score: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		err = pkgerrors.ErrUserNotFound
		return err
	}
	return nil
}
