package memory

import (
	"context"
	"fmt"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
)

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Append(_ context.Context, e *models.LedgerEntry) error {
	if e == nil || !e.Kind.Valid() {
		return fmt.Errorf("%w: invalid ledger entry", pkgerrors.ErrInvalidInput)
	}
	defer r.s.lock()()

	e.ID = r.s.data.nextID()
	e.CreatedAt = r.s.now()
	r.s.data.entries = append(r.s.data.entries, *e)
	return nil
}

func (r *ledgerRepo) ListByUser(_ context.Context, userID int64) ([]models.LedgerEntry, error) {
	defer r.s.lock()()

	var out []models.LedgerEntry
	for i := len(r.s.data.entries) - 1; i >= 0; i-- {
		if e := r.s.data.entries[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *ledgerRepo) SumByUser(_ context.Context, userID int64) (decimal.Decimal, error) {
	defer r.s.lock()()

	sum := decimal.Zero
	for _, e := range r.s.data.entries {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (r *ledgerRepo) CreateDonation(_ context.Context, d *models.DonationRecord) error {
	defer r.s.lock()()

	d.ID = r.s.data.nextID()
	d.CreatedAt = r.s.now()
	r.s.data.donations = append(r.s.data.donations, *d)
	return nil
}

func (r *ledgerRepo) ListDonations(_ context.Context, userID int64) ([]models.DonationRecord, error) {
	defer r.s.lock()()

	var out []models.DonationRecord
	for i := len(r.s.data.donations) - 1; i >= 0; i-- {
		if d := r.s.data.donations[i]; d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *ledgerRepo) SumDonations(_ context.Context, userID int64) (decimal.Decimal, error) {
	defer r.s.lock()()

	sum := decimal.Zero
	for _, d := range r.s.data.donations {
		if d.UserID == userID {
			sum = sum.Add(d.Amount)
		}
	}
	return sum, nil
}
