package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
)

type listingRepo struct{ s *Store }

func (r *listingRepo) Create(_ context.Context, l *models.Listing) error {
	defer r.s.lock()()

	now := r.s.now()
	l.ID = r.s.data.nextID()
	l.Version = 1
	l.CreatedAt, l.UpdatedAt = now, now
	r.s.data.listings[l.ID] = *l
	return nil
}

func (r *listingRepo) GetByID(_ context.Context, id int64) (*models.Listing, error) {
	defer r.s.lock()()

	l, ok := r.s.data.listings[id]
	if !ok {
		return nil, pkgerrors.ErrListingNotFound
	}
	return &l, nil
}

func (r *listingRepo) List(_ context.Context, q models.ListingQuery) ([]models.Listing, error) {
	defer r.s.lock()()

	search := strings.ToLower(q.Search)
	var out []models.Listing
	for _, l := range r.s.data.listings {
		switch {
		case l.Deleted,
			q.Status != "" && l.Status != q.Status,
			q.OwnerID != 0 && l.OwnerID != q.OwnerID,
			q.ExcludeOwnerID != 0 && l.OwnerID == q.ExcludeOwnerID,
			q.ExchangeableOnly && !l.Exchangeable,
			q.Category != "" && l.Category != q.Category:
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(l.Title), search) &&
			!strings.Contains(strings.ToLower(l.Description), search) &&
			!strings.Contains(strings.ToLower(l.Brand), search) {
			continue
		}
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		if q.OldestFirst {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *listingRepo) TransitionStatus(_ context.Context, id int64, from, to models.ListingStatus) error {
	return r.update(id, func(l *models.Listing) bool {
		if l.Status != from {
			return false
		}
		l.Status = to
		return true
	})
}

func (r *listingRepo) UpdatePrice(_ context.Context, id int64, price decimal.Decimal) error {
	return r.update(id, func(l *models.Listing) bool {
		if l.Status == models.ListingSold {
			return false
		}
		l.Price = price
		return true
	})
}

func (r *listingRepo) SetExchangeable(_ context.Context, id int64, exchangeable bool) error {
	return r.update(id, func(l *models.Listing) bool {
		if l.Status == models.ListingSold {
			return false
		}
		l.Exchangeable = exchangeable
		return true
	})
}

func (r *listingRepo) SoftDelete(_ context.Context, id int64) error {
	return r.update(id, func(l *models.Listing) bool {
		l.Deleted = true
		return true
	})
}

// update applies fn to a non-deleted listing; fn reports whether its guard held.
func (r *listingRepo) update(id int64, fn func(l *models.Listing) bool) error {
	defer r.s.lock()()

	l, ok := r.s.data.listings[id]
	if !ok || l.Deleted || !fn(&l) {
		return pkgerrors.ErrStatusConflict
	}
	l.Version++
	l.UpdatedAt = r.s.now()
	r.s.data.listings[id] = l
	return nil
}
