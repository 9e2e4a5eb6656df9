package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/moderation"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/redis"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Topic string
	Key   int64
	Event models.Event
}

type recordingProducer struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key int64, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) eventTypes(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.sent {
		if m.Topic == topic {
			out = append(out, m.Event.EventType)
		}
	}
	return out
}

type gatewayFunc func(ctx context.Context, req moderation.Request) (models.ModerationResult, error)

func (f gatewayFunc) Moderate(ctx context.Context, req moderation.Request) (models.ModerationResult, error) {
	return f(ctx, req)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	sessions *memory.SessionStore
	cache    *redis.BalanceCache
	producer *recordingProducer
	clock    time.Time

	listings  *listingService
	ledger    *ledgerService
	payments  *paymentService
	orders    *orderService
	exchanges *exchangeService
	admin     *adminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memory.NewStore(),
		sessions: memory.NewSessionStore(),
		cache:    redis.NewBalanceCache(client),
		producer: &recordingProducer{},
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	f.listings = NewListingService(f.store, moderation.NewStatic(models.ModerationResult{
		Verdict: models.VerdictApproved, ReasonCode: "approved_clothing", Confidence: 0.9,
	}), time.Second)

	f.ledger, err = NewLedgerService(f.store, f.cache, f.producer, `^\d{12}$`)
	require.NoError(t, err)

	cfg := DefaultPaymentConfig()
	cfg.GatewayDelay = 0
	cfg.DeclineRate = 0.05
	f.payments = NewPaymentService(f.store, f.sessions, f.cache, f.producer, cfg)
	f.payments.now = func() time.Time { return f.clock }
	f.payments.random = func() float64 { return 0.5 }

	f.orders = NewOrderService(f.store, f.cache, f.producer)
	f.exchanges = NewExchangeService(f.store, f.producer)
	f.admin = NewAdminService(f.store)
	return f
}

func (f *fixture) user(name string) int64 {
	f.t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com"}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return u.ID
}

func (f *fixture) listing(ownerID int64, price string, exchangeable bool) int64 {
	f.t.Helper()
	l, err := f.listings.Submit(f.ctx, ownerID, models.ListingDraft{
		Title:        "Vintage denim jacket",
		Category:     "jackets",
		Brand:        "Levi's",
		Price:        decimal.RequireFromString(price),
		Exchangeable: exchangeable,
	}, []byte("image"))
	require.NoError(f.t, err)
	require.Equal(f.t, models.ListingApproved, l.Status)
	return l.ID
}

func (f *fixture) listingStatus(id int64) models.ListingStatus {
	f.t.Helper()
	l, err := f.store.Listings().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return l.Status
}

func (f *fixture) userRecord(id int64) *models.User {
	f.t.Helper()
	u, err := f.store.Users().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return u
}

// authorized runs Init and Authorize and returns the approved token.
func (f *fixture) authorized(buyerID, listingID int64) string {
	f.t.Helper()
	started, err := f.payments.Init(f.ctx, buyerID, listingID, models.MethodCard)
	require.NoError(f.t, err)
	_, err = f.payments.Authorize(f.ctx, started.Token, buyerID, models.AuthorizeInput{CardNumber: "4111 1111 1111 1111"})
	require.NoError(f.t, err)
	return started.Token
}

// acceptedExchange returns an accepted exchange between two fresh users.
func (f *fixture) acceptedExchange() (req *models.ExchangeRequest, requester, receiver int64) {
	f.t.Helper()
	requester = f.user("alice")
	receiver = f.user("bob")
	mine := f.listing(requester, "30.00", true)
	theirs := f.listing(receiver, "40.00", true)

	req, err := f.exchanges.Request(f.ctx, requester, models.ExchangeProposal{
		ReceiverID: receiver, RequesterListingID: mine, ReceiverListingID: theirs,
	})
	require.NoError(f.t, err)
	req, err = f.exchanges.Respond(f.ctx, req.ID, receiver, models.ExchangeAccepted)
	require.NoError(f.t, err)
	return req, requester, receiver
}
