package repository

import (
	"context"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
)

// SessionStore keeps payment sessions outside the relational store.
// Get returns pkgerrors.ErrInvalidSession when the token is unknown.
type SessionStore interface {
	Get(ctx context.Context, token string) (*models.PaymentSession, error)
	Set(ctx context.Context, session *models.PaymentSession) error
	Delete(ctx context.Context, token string) error
	// Claim takes an exclusive, self-expiring hold on token.
	Claim(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, token string) error
}

// Sweeper is implemented by stores that need expired sessions purged.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}
