package service

import (
	"testing"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_UserDetails(t *testing.T) {
	f := newFixture(t)
	order, buyer, seller := f.order("20.00")
	req, requester, _ := f.acceptedExchange()
	admin := models.Identity{UserID: f.user("root"), Role: models.RoleAdmin}

	_, err := f.admin.ListUsers(f.ctx, models.Identity{UserID: buyer})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	_, err = f.admin.UserDetails(f.ctx, models.Identity{UserID: buyer}, seller)
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)

	users, err := f.admin.ListUsers(f.ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	details, err := f.admin.UserDetails(f.ctx, admin, seller)
	require.NoError(t, err)
	assert.Empty(t, details.Buying)
	require.Len(t, details.Selling, 1)
	assert.Equal(t, order.ID, details.Selling[0].ID)

	details, err = f.admin.UserDetails(f.ctx, admin, buyer)
	require.NoError(t, err)
	require.Len(t, details.Buying, 1)
	assert.Empty(t, details.Selling)

	details, err = f.admin.UserDetails(f.ctx, admin, requester)
	require.NoError(t, err)
	require.Len(t, details.Exchanges, 1)
	assert.Equal(t, req.ID, details.Exchanges[0].ID)

	_, err = f.admin.UserDetails(f.ctx, admin, 9999)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
