package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"strings"
	"time"

	"github.com/honeynil/ReWearExchange/internal/infrastructure/kafka"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/observability"
	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/honeynil/ReWearExchange/internal/repository"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type PaymentConfig struct {
	SessionTTL      time.Duration
	GatewayDelay    time.Duration
	DeclineRate     float64
	DonationMin     decimal.Decimal
	DonationMax     decimal.Decimal
	DonationDefault decimal.Decimal
	Currency        string
	ClaimTTL        time.Duration
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		SessionTTL:      10 * time.Minute,
		GatewayDelay:    1500 * time.Millisecond,
		DeclineRate:     0.05,
		DonationMin:     decimal.Zero,
		DonationMax:     decimal.NewFromInt(20),
		DonationDefault: decimal.NewFromInt(5),
		Currency:        "USD",
		ClaimTTL:        30 * time.Second,
	}
}

type PaymentService interface {
	Init(ctx context.Context, buyerID, listingID int64, method models.PaymentMethod) (*models.PaymentInit, error)
	Authorize(ctx context.Context, token string, buyerID int64, in models.AuthorizeInput) (*models.PaymentAuthorization, error)
	Settle(ctx context.Context, token string, buyerID int64) (*models.EscrowedOrder, error)
	RunSweeper(ctx context.Context, interval time.Duration)
}

type paymentService struct {
	store    repository.Store
	sessions repository.SessionStore
	cache    BalanceCache
	events   eventPublisher
	cfg      PaymentConfig

	now    func() time.Time
	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPaymentService(
	store repository.Store,
	sessions repository.SessionStore,
	cache BalanceCache,
	producer kafka.KafkaProducer,
	cfg PaymentConfig,
) *paymentService {
	return &paymentService{
		store:    store,
		sessions: sessions,
		cache:    cache,
		events:   eventPublisher{producer: producer},
		cfg:      cfg,
		now:      time.Now,
		random:   mathrand.Float64,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *paymentService) Init(ctx context.Context, buyerID, listingID int64, method models.PaymentMethod) (*models.PaymentInit, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "Init")
	defer span.End()
	span.SetAttributes(attribute.Int64("listing_id", listingID), attribute.Int64("buyer_id", buyerID))

	if !method.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", pkgerrors.ErrInvalidInput, method)
	}

	listing, err := s.store.Listings().GetByID(ctx, listingID)
	if err != nil {
		failSpan(span, err, "listing lookup failed")
		return nil, err
	}
	if listing.OwnerID == buyerID {
		return nil, pkgerrors.ErrSelfPurchase
	}
	if !listing.Visible() {
		return nil, pkgerrors.ErrNotAvailable
	}

	token, err := randomHex(32)
	if err != nil {
		failSpan(span, err, "token generation failed")
		return nil, fmt.Errorf("%w: failed to generate token", pkgerrors.ErrInternal)
	}

	now := s.now()
	sess := &models.PaymentSession{
		Token:     token,
		ListingID: listing.ID,
		BuyerID:   buyerID,
		SellerID:  listing.OwnerID,
		Method:    method,
		Amount:    listing.Price,
		Status:    models.SessionPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Set(ctx, sess); err != nil {
		failSpan(span, err, "session store failed")
		return nil, err
	}

	slog.Info("payment session created", "listing_id", listing.ID, "buyer_id", buyerID, "method", method)
	return &models.PaymentInit{
		Token:     token,
		Amount:    sess.Amount,
		Currency:  s.cfg.Currency,
		ExpiresIn: int(s.cfg.SessionTTL.Seconds()),
	}, nil
}

func (s *paymentService) Authorize(ctx context.Context, token string, buyerID int64, in models.AuthorizeInput) (*models.PaymentAuthorization, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "Authorize")
	defer span.End()

	release, err := s.claim(ctx, token)
	if err != nil {
		failSpan(span, err, "session claim failed")
		return nil, err
	}
	defer release()

	sess, err := s.liveSession(ctx, token, buyerID)
	if err != nil {
		failSpan(span, err, "session check failed")
		return nil, err
	}
	if sess.Status != models.SessionPending {
		return nil, fmt.Errorf("%w: session already authorized", pkgerrors.ErrInvalidState)
	}

	var mask string
	if sess.Method == models.MethodCard {
		digits := strings.ReplaceAll(in.CardNumber, " ", "")
		if !validCardNumber(digits) {
			return nil, pkgerrors.ErrInvalidInstrument
		}
		mask = digits[len(digits)-4:]
	}
	pct := s.donationPercent(in.DonationPercent)

	// Имитация ответа банка
	if err := s.sleep(ctx, s.cfg.GatewayDelay); err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		return nil, pkgerrors.ErrExpired
	}
	if s.random() < s.cfg.DeclineRate {
		observability.SettlementOutcomes.WithLabelValues("authorize", "declined").Inc()
		slog.Info("payment declined", "listing_id", sess.ListingID, "buyer_id", buyerID)
		return nil, pkgerrors.ErrDeclined
	}

	authCode, err := randomHex(6)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate auth code", pkgerrors.ErrInternal)
	}

	sess.Status = models.SessionApproved
	sess.InstrumentMask = mask
	sess.Phone = in.Phone
	sess.DonationPercent = pct
	sess.DonationAmount = sess.Amount.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	sess.AuthCode = strings.ToUpper(authCode)
	if err := s.sessions.Set(ctx, sess); err != nil {
		failSpan(span, err, "session store failed")
		return nil, err
	}

	observability.SettlementOutcomes.WithLabelValues("authorize", "approved").Inc()
	return &models.PaymentAuthorization{
		AuthCode:        sess.AuthCode,
		DonationPercent: pct,
		DonationAmount:  sess.DonationAmount,
	}, nil
}

func (s *paymentService) Settle(ctx context.Context, token string, buyerID int64) (*models.EscrowedOrder, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "Settle")
	defer span.End()

	release, err := s.claim(ctx, token)
	if err != nil {
		failSpan(span, err, "session claim failed")
		return nil, err
	}
	defer release()

	sess, err := s.liveSession(ctx, token, buyerID)
	if err != nil {
		failSpan(span, err, "session check failed")
		return nil, err
	}
	if sess.Status != models.SessionApproved {
		return nil, fmt.Errorf("%w: payment not authorized", pkgerrors.ErrInvalidState)
	}

	order := &models.EscrowedOrder{
		BuyerID:        sess.BuyerID,
		SellerID:       sess.SellerID,
		ListingID:      sess.ListingID,
		Amount:         sess.Amount,
		DonationShare:  sess.DonationAmount,
		Status:         models.OrderHeld,
		Method:         sess.Method,
		InstrumentMask: sess.InstrumentMask,
		Phone:          sess.Phone,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := markSold(ctx, tx, sess.ListingID); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if !order.DonationShare.IsPositive() {
			return nil
		}
		orderID := order.ID
		return tx.Ledger().CreateDonation(ctx, &models.DonationRecord{
			UserID:  order.BuyerID,
			OrderID: &orderID,
			Amount:  order.DonationShare,
			Source:  models.DonationFromTransaction,
		})
	})
	if err != nil {
		observability.SettlementOutcomes.WithLabelValues("settle", pkgerrors.Code(err)).Inc()
		failSpan(span, err, "settlement failed")
		slog.Error("settlement failed", "listing_id", sess.ListingID, "buyer_id", buyerID, "error", err)
		return nil, err
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		slog.Warn("failed to delete consumed session", "listing_id", sess.ListingID, "error", err)
	}
	s.cache.Invalidate(ctx, order.BuyerID)
	s.events.publish(ctx, models.TopicOrders, order.ID, models.EventOrderCreated, order)

	observability.SettlementOutcomes.WithLabelValues("settle", "success").Inc()
	slog.Info("payment settled",
		"order_id", order.ID,
		"listing_id", order.ListingID,
		"buyer_id", order.BuyerID,
		"amount", order.Amount.StringFixed(2),
		"donation", order.DonationShare.StringFixed(2))
	return order, nil
}

// claim serialises Authorize and Settle on one token. ClaimTTL must outlast
// GatewayDelay.
func (s *paymentService) claim(ctx context.Context, token string) (func(), error) {
	if token == "" {
		return nil, pkgerrors.ErrInvalidSession
	}
	claimed, err := s.sessions.Claim(ctx, token, s.cfg.ClaimTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: payment already in progress", pkgerrors.ErrInvalidState)
	}
	return func() {
		if err := s.sessions.Release(context.WithoutCancel(ctx), token); err != nil {
			slog.Warn("failed to release session claim", "error", err)
		}
	}, nil
}

// liveSession loads a session that is unexpired and belongs to buyerID.
func (s *paymentService) liveSession(ctx context.Context, token string, buyerID int64) (*models.PaymentSession, error) {
	if token == "" {
		return nil, pkgerrors.ErrInvalidSession
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		return nil, pkgerrors.ErrExpired
	}
	if sess.BuyerID != buyerID {
		return nil, pkgerrors.ErrForbidden
	}
	return sess, nil
}

func (s *paymentService) donationPercent(requested *decimal.Decimal) decimal.Decimal {
	if requested == nil {
		return s.cfg.DonationDefault
	}
	pct := *requested
	if pct.LessThan(s.cfg.DonationMin) {
		return s.cfg.DonationMin
	}
	if pct.GreaterThan(s.cfg.DonationMax) {
		return s.cfg.DonationMax
	}
	return pct
}

// RunSweeper purges expired sessions until ctx is done. Stores that expire
// keys on their own do not need it.
func (s *paymentService) RunSweeper(ctx context.Context, interval time.Duration) {
	sweeper, ok := s.sessions.(repository.Sweeper)
	if !ok {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.Sweep(ctx, s.now())
			if err != nil {
				slog.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				observability.PaymentSessionsSwept.Add(float64(n))
				slog.Info("expired payment sessions swept", "count", n)
			}
		}
	}
}

func validCardNumber(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
