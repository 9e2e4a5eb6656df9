// Package memory is a process-local repository.Store used by tests and by
// single-node development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
)

type state struct {
	seq       int64
	users     map[int64]models.User
	listings  map[int64]models.Listing
	orders    map[int64]models.EscrowedOrder
	exchanges map[int64]models.ExchangeRequest
	entries   []models.LedgerEntry
	donations []models.DonationRecord
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		seq:       s.seq,
		users:     make(map[int64]models.User, len(s.users)),
		listings:  make(map[int64]models.Listing, len(s.listings)),
		orders:    make(map[int64]models.EscrowedOrder, len(s.orders)),
		exchanges: make(map[int64]models.ExchangeRequest, len(s.exchanges)),
		entries:   append([]models.LedgerEntry(nil), s.entries...),
		donations: append([]models.DonationRecord(nil), s.donations...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.exchanges {
		c.exchanges[k] = v
	}
	return c
}

// Store serialises every operation on one mutex. A transaction holds the
// mutex for its whole duration and restores a snapshot on error.
type Store struct {
	mu   *sync.Mutex
	data *state
	inTx bool
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &state{
			users:     make(map[int64]models.User),
			listings:  make(map[int64]models.Listing),
			orders:    make(map[int64]models.EscrowedOrder),
			exchanges: make(map[int64]models.ExchangeRequest),
		},
		now: time.Now,
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() repository.UserRepository         { return &userRepo{s} }
func (s *Store) Listings() repository.ListingRepository   { return &listingRepo{s} }
func (s *Store) Orders() repository.OrderRepository       { return &orderRepo{s} }
func (s *Store) Exchanges() repository.ExchangeRepository { return &exchangeRepo{s} }
func (s *Store) Ledger() repository.LedgerRepository      { return &ledgerRepo{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}
