package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

// expiredRetention keeps a session readable for a while after it expires,
// so a late caller gets Expired rather than an unknown-token error.
const expiredRetention = 5 * time.Minute

// SessionStore keeps payment sessions as JSON values with a key TTL.
type SessionStore struct {
	client RedisClient
	now    func() time.Time
}

func NewSessionStore(client RedisClient) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func sessionKey(token string) string {
	return fmt.Sprintf("payment:session:%s", token)
}

func claimKey(token string) string {
	return fmt.Sprintf("payment:session:%s:claim", token)
}

func (s *SessionStore) Get(ctx context.Context, token string) (*models.PaymentSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(token))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, pkgerrors.ErrInvalidSession
	}
	if err != nil {
		slog.Error("failed to read payment session", "error", err)
		return nil, fmt.Errorf("failed to read payment session: %w", err)
	}

	var sess models.PaymentSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		slog.Error("corrupt payment session", "error", err)
		return nil, fmt.Errorf("failed to decode payment session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Set(ctx context.Context, sess *models.PaymentSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode payment session: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(s.now()) + expiredRetention
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), data, ttl); err != nil {
		slog.Error("failed to store payment session", "error", err)
		return fmt.Errorf("failed to store payment session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to delete payment session: %w", err)
	}
	return nil
}

func (s *SessionStore) Claim(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, claimKey(token), "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim payment session: %w", err)
	}
	return ok, nil
}

func (s *SessionStore) Release(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, claimKey(token)); err != nil {
		return fmt.Errorf("failed to release payment session: %w", err)
	}
	return nil
}
