package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository/postgres"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_ChangeBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewUserRepository(db)
	ctx := context.Background()

	updateQuery := regexp.QuoteMeta(`UPDATE users SET balance = balance + $1 WHERE id = $2 AND (balance + $1) >= 0 RETURNING balance`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs("25.5", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("125.50"))

		balance, err := repo.ChangeBalance(ctx, 1, decimal.RequireFromString("25.5"))
		assert.NoError(t, err)
		assert.Equal(t, "125.50", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs("-50", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.ChangeBalance(ctx, 1, decimal.NewFromInt(-50))
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UserNotFound", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs("5", int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.ChangeBalance(ctx, 42, decimal.NewFromInt(5))
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewUserRepository(db)
	ctx := context.Background()
	columns := []string{"id", "username", "email", "balance", "credit_score", "is_admin", "created_at"}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(3), "nadia", "nadia@example.com", "12.00", 20, false, time.Now()))

		user, err := repo.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "nadia", user.Username)
		assert.Equal(t, 20, user.CreditScore)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetByID(ctx, 4)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewUserRepository(db)

	err = repo.Create(context.Background(), &models.User{})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}
