package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, u *models.User) error {
	if u == nil || u.Username == "" {
		return fmt.Errorf("%w: username is required", pkgerrors.ErrInvalidInput)
	}
	defer r.s.lock()()

	u.ID = r.s.data.nextID()
	u.CreatedAt = r.s.now()
	r.s.data.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	defer r.s.lock()()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) List(_ context.Context) ([]models.User, error) {
	defer r.s.lock()()

	users := make([]models.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) ChangeBalance(_ context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	defer r.s.lock()()

	u, ok := r.s.data.users[userID]
	if !ok {
		return decimal.Zero, pkgerrors.ErrUserNotFound
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, pkgerrors.ErrInsufficientFunds
	}
	u.Balance = next
	r.s.data.users[userID] = u
	return next, nil
}

func (r *userRepo) AddCreditScore(_ context.Context, userID int64, delta int) error {
	defer r.s.lock()()

	u, ok := r.s.data.users[userID]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	u.CreditScore += delta
	r.s.data.users[userID] = u
	return nil
}
