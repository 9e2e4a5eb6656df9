package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("RollbackRestoresState", func(t *testing.T) {
		store := NewStore()
		user := &models.User{Username: "alice", Balance: decimal.NewFromInt(50)}
		require.NoError(t, store.Users().Create(ctx, user))

		boom := errors.New("boom")
		err := store.WithinTx(ctx, func(tx repository.Store) error {
			if _, err := tx.Users().ChangeBalance(ctx, user.ID, decimal.NewFromInt(-20)); err != nil {
				return err
			}
			if err := tx.Ledger().Append(ctx, &models.LedgerEntry{UserID: user.ID, Amount: decimal.NewFromInt(-20), Kind: models.KindDonation}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))

		entries, err := store.Ledger().ListByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("CommitKeepsState", func(t *testing.T) {
		store := NewStore()
		listing := &models.Listing{OwnerID: 1, Title: "Denim jacket", Status: models.ListingApproved}
		require.NoError(t, store.Listings().Create(ctx, listing))

		err := store.WithinTx(ctx, func(tx repository.Store) error {
			return tx.Listings().TransitionStatus(ctx, listing.ID, models.ListingApproved, models.ListingSold)
		})
		require.NoError(t, err)

		got, err := store.Listings().GetByID(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ListingSold, got.Status)
		assert.Equal(t, int64(2), got.Version)
	})
}

func TestListingRepo_ConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	listing := &models.Listing{OwnerID: 1, Title: "Wool coat", Status: models.ListingApproved}
	require.NoError(t, store.Listings().Create(ctx, listing))

	require.NoError(t, store.Listings().TransitionStatus(ctx, listing.ID, models.ListingApproved, models.ListingSold))
	err := store.Listings().TransitionStatus(ctx, listing.ID, models.ListingApproved, models.ListingSold)
	assert.ErrorIs(t, err, pkgerrors.ErrStatusConflict)

	err = store.Listings().UpdatePrice(ctx, listing.ID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, pkgerrors.ErrStatusConflict)
}

func TestListingRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, l := range []*models.Listing{
		{OwnerID: 1, Title: "Red dress", Category: "dresses", Status: models.ListingApproved, Exchangeable: true},
		{OwnerID: 2, Title: "Blue jeans", Category: "pants", Status: models.ListingApproved},
		{OwnerID: 2, Title: "Green scarf", Category: "accessories", Status: models.ListingPending},
		{OwnerID: 3, Title: "Old boots", Category: "shoes", Status: models.ListingApproved, Deleted: true},
	} {
		require.NoError(t, store.Listings().Create(ctx, l))
	}

	visible, err := store.Listings().List(ctx, models.ListingQuery{Status: models.ListingApproved})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "Blue jeans", visible[0].Title)

	found, err := store.Listings().List(ctx, models.ListingQuery{Status: models.ListingApproved, Search: "DRESS"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	exchangeable, err := store.Listings().List(ctx, models.ListingQuery{
		Status: models.ListingApproved, ExchangeableOnly: true, ExcludeOwnerID: 2,
	})
	require.NoError(t, err)
	require.Len(t, exchangeable, 1)
	assert.Equal(t, int64(1), exchangeable[0].OwnerID)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	sess := &models.PaymentSession{Token: "abc", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, store.Set(ctx, sess))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Token)

	ok, err := store.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Release(ctx, "abc"))
	ok, err = store.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := store.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidSession)
}
