package repository

import "context"

// Store groups the repositories that must change together.
// Repositories obtained from the Store passed to fn share one transaction.
type Store interface {
	Users() UserRepository
	Listings() ListingRepository
	Orders() OrderRepository
	Exchanges() ExchangeRepository
	Ledger() LedgerRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
