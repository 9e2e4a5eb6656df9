package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(_ context.Context, o *models.EscrowedOrder) error {
	defer r.s.lock()()

	for _, existing := range r.s.data.orders {
		if existing.ListingID == o.ListingID {
			return fmt.Errorf("order for listing %d already exists", o.ListingID)
		}
	}
	now := r.s.now()
	o.ID = r.s.data.nextID()
	o.CreatedAt, o.UpdatedAt = now, now
	r.s.data.orders[o.ID] = *o
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id int64) (*models.EscrowedOrder, error) {
	defer r.s.lock()()

	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, pkgerrors.ErrOrderNotFound
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(_ context.Context, userID int64) ([]models.EscrowedOrder, error) {
	defer r.s.lock()()

	var out []models.EscrowedOrder
	for _, o := range r.s.data.orders {
		if o.IsParty(userID) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *orderRepo) TransitionStatus(_ context.Context, id int64, from, to models.OrderStatus) error {
	defer r.s.lock()()

	o, ok := r.s.data.orders[id]
	if !ok || o.Status != from {
		return pkgerrors.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.s.data.orders[id] = o
	return nil
}
