package memory

import (
	"context"
	"sort"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

type exchangeRepo struct{ s *Store }

func (r *exchangeRepo) Create(_ context.Context, req *models.ExchangeRequest) error {
	defer r.s.lock()()

	now := r.s.now()
	req.ID = r.s.data.nextID()
	req.CreatedAt, req.UpdatedAt = now, now
	r.s.data.exchanges[req.ID] = *req
	return nil
}

func (r *exchangeRepo) GetByID(_ context.Context, id int64) (*models.ExchangeRequest, error) {
	defer r.s.lock()()

	e, ok := r.s.data.exchanges[id]
	if !ok {
		return nil, pkgerrors.ErrExchangeNotFound
	}
	return &e, nil
}

func (r *exchangeRepo) ListByUser(_ context.Context, userID int64) ([]models.ExchangeRequest, error) {
	defer r.s.lock()()

	var out []models.ExchangeRequest
	for _, e := range r.s.data.exchanges {
		if _, ok := e.PartyOf(userID); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *exchangeRepo) TransitionStatus(_ context.Context, id int64, from, to models.ExchangeStatus) error {
	defer r.s.lock()()

	e, ok := r.s.data.exchanges[id]
	if !ok || e.Status != from {
		return pkgerrors.ErrStatusConflict
	}
	e.Status = to
	e.UpdatedAt = r.s.now()
	r.s.data.exchanges[id] = e
	return nil
}

func (r *exchangeRepo) SetConfirmation(_ context.Context, id int64, party models.ExchangeParty) (*models.ExchangeRequest, error) {
	defer r.s.lock()()

	e, ok := r.s.data.exchanges[id]
	if !ok || e.Status != models.ExchangeAccepted {
		return nil, pkgerrors.ErrStatusConflict
	}
	if party == models.PartyReceiver {
		e.ReceiverConfirmed = true
	} else {
		e.RequesterConfirmed = true
	}
	e.UpdatedAt = r.s.now()
	r.s.data.exchanges[id] = e
	return &e, nil
}
