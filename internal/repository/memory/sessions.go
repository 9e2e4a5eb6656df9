package memory

import (
	"context"
	"sync"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

// SessionStore keeps payment sessions in a map. Expired sessions stay
// readable until Sweep removes them, so callers can tell Expired apart
// from an unknown token.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.PaymentSession
	claims   map[string]time.Time
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]models.PaymentSession),
		claims:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *SessionStore) Get(_ context.Context, token string) (*models.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, pkgerrors.ErrInvalidSession
	}
	return &sess, nil
}

func (s *SessionStore) Set(_ context.Context, sess *models.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Token] = *sess
	return nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *SessionStore) Claim(_ context.Context, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.claims[token]; ok && now.Before(until) {
		return false, nil
	}
	s.claims[token] = now.Add(ttl)
	return true, nil
}

func (s *SessionStore) Release(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, token)
	return nil
}

// Sweep drops sessions and claims that expired before now.
func (s *SessionStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	for token, until := range s.claims {
		if !now.Before(until) {
			delete(s.claims, token)
		}
	}
	return removed, nil
}
