package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_PurchaseWithDefaultDonation(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "100.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodCard)
	require.NoError(t, err)
	assert.Len(t, started.Token, 64)
	assert.Equal(t, "USD", started.Currency)
	assert.Equal(t, 600, started.ExpiresIn)
	assert.Equal(t, "100.00", started.Amount.StringFixed(2))

	auth, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111 1111 1111 1111"})
	require.NoError(t, err)
	assert.Len(t, auth.AuthCode, 12)
	assert.Equal(t, "5", auth.DonationPercent.String())
	assert.Equal(t, "5.00", auth.DonationAmount.StringFixed(2))

	order, err := f.payments.Settle(f.ctx, started.Token, buyer)
	require.NoError(t, err)
	assert.Equal(t, models.OrderHeld, order.Status)
	assert.Equal(t, "100.00", order.Amount.StringFixed(2))
	assert.Equal(t, "5.00", order.DonationShare.StringFixed(2))
	assert.Equal(t, "1111", order.InstrumentMask)
	assert.Equal(t, models.ListingSold, f.listingStatus(listingID))

	donations, err := f.ledger.Donations(f.ctx, buyer)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, models.DonationFromTransaction, donations[0].Source)
	require.NotNil(t, donations[0].OrderID)
	assert.Equal(t, order.ID, *donations[0].OrderID)

	// покупка не трогает баланс покупателя
	assert.True(t, f.userRecord(buyer).Balance.IsZero())

	_, err = f.payments.Settle(f.ctx, started.Token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidSession)

	_, err = f.orders.ConfirmReceipt(f.ctx, order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, "95.00", f.userRecord(seller).Balance.StringFixed(2))
	assert.Equal(t, models.CreditScoreReward, f.userRecord(seller).CreditScore)

	assert.Equal(t, []string{models.EventOrderCreated, models.EventOrderReleased}, f.producer.eventTypes(models.TopicOrders))
}

func TestPayment_InitRejections(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "20.00", false)

	t.Run("SelfPurchase", func(t *testing.T) {
		_, err := f.payments.Init(f.ctx, seller, listingID, models.MethodCard)
		assert.ErrorIs(t, err, pkgerrors.ErrSelfPurchase)
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		_, err := f.payments.Init(f.ctx, buyer, listingID, "Cheque")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("NotAvailable", func(t *testing.T) {
		_, err := f.listings.Delist(f.ctx, listingID, seller)
		require.NoError(t, err)

		_, err = f.payments.Init(f.ctx, buyer, listingID, models.MethodPayPal)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAvailable)
	})
}

func TestPayment_Authorize(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "80.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodCard)
	require.NoError(t, err)

	t.Run("UnknownToken", func(t *testing.T) {
		_, err := f.payments.Authorize(f.ctx, "nope", buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidSession)
	})

	t.Run("OtherBuyer", func(t *testing.T) {
		_, err := f.payments.Authorize(f.ctx, started.Token, buyer+100, models.AuthorizeInput{CardNumber: "4111111111111111"})
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})

	t.Run("ShortCard", func(t *testing.T) {
		_, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111 1111 111"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInstrument)
	})

	t.Run("DeclinedLeavesSessionPending", func(t *testing.T) {
		f.payments.random = func() float64 { return 0.01 }
		_, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
		assert.ErrorIs(t, err, pkgerrors.ErrDeclined)

		sess, err := f.sessions.Get(f.ctx, started.Token)
		require.NoError(t, err)
		assert.Equal(t, models.SessionPending, sess.Status)
		f.payments.random = func() float64 { return 0.5 }
	})

	t.Run("DonationClampedToMax", func(t *testing.T) {
		pct := decimal.NewFromInt(50)
		auth, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{
			CardNumber: "4111111111111111", DonationPercent: &pct,
		})
		require.NoError(t, err)
		assert.Equal(t, "20", auth.DonationPercent.String())
		assert.Equal(t, "16.00", auth.DonationAmount.StringFixed(2))
	})

	t.Run("SecondAuthorizeIsInvalidState", func(t *testing.T) {
		_, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
	})

	t.Run("CancelledDuringDelay", func(t *testing.T) {
		other := f.listing(seller, "10.00", false)
		started, err := f.payments.Init(f.ctx, buyer, other, models.MethodFPX)
		require.NoError(t, err)

		f.payments.cfg.GatewayDelay = time.Hour
		defer func() { f.payments.cfg.GatewayDelay = 0 }()
		ctx, cancel := context.WithTimeout(f.ctx, 10*time.Millisecond)
		defer cancel()

		_, err = f.payments.Authorize(ctx, started.Token, buyer, models.AuthorizeInput{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPayment_ZeroDonationWritesNoRecord(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "33.33", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodPayPal)
	require.NoError(t, err)
	pct := decimal.NewFromInt(-3)
	auth, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{DonationPercent: &pct})
	require.NoError(t, err)
	assert.True(t, auth.DonationPercent.IsZero())

	order, err := f.payments.Settle(f.ctx, started.Token, buyer)
	require.NoError(t, err)
	assert.True(t, order.DonationShare.IsZero())

	donations, err := f.ledger.Donations(f.ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, donations)
}

func TestPayment_SessionExpires(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "15.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodCard)
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)

	_, err = f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)
	assert.Equal(t, models.ListingApproved, f.listingStatus(listingID))

	removed, err := f.sessions.Sweep(f.ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestPayment_ExpiredAfterAuthorize(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "15.00", false)
	token := f.authorized(buyer, listingID)

	f.clock = f.clock.Add(10 * time.Minute)

	_, err := f.payments.Settle(f.ctx, token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)
	assert.Equal(t, models.ListingApproved, f.listingStatus(listingID))
}

func TestPayment_SettleRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "15.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodCard)
	require.NoError(t, err)

	_, err = f.payments.Settle(f.ctx, started.Token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
}

func TestPayment_FailedSettleKeepsSession(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "60.00", false)
	token := f.authorized(buyer, listingID)

	_, err := f.listings.Delist(f.ctx, listingID, seller)
	require.NoError(t, err)

	_, err = f.payments.Settle(f.ctx, token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrNotAvailable)

	sess, err := f.sessions.Get(f.ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.SessionApproved, sess.Status)

	orders, err := f.orders.ListMine(f.ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPayment_ConcurrentSettlementsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	listingID := f.listing(seller, "45.00", false)

	const buyers = 8
	tokens := make([]string, buyers)
	ids := make([]int64, buyers)
	for i := range tokens {
		ids[i] = f.user("buyer")
		tokens[i] = f.authorized(ids[i], listingID)
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, buyers)
	)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.payments.Settle(f.ctx, tokens[i], ids[i])
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, pkgerrors.ErrAlreadySold)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, models.ListingSold, f.listingStatus(listingID))
}

func TestPayment_RunSweeper(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "15.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodCard)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	go f.payments.RunSweeper(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := f.sessions.Get(f.ctx, started.Token)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestPayment_AuthorizeHoldsSessionAgainstSettle(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "70.00", false)
	token := f.authorized(buyer, listingID)

	other := f.listing(seller, "25.00", false)
	started, err := f.payments.Init(f.ctx, buyer, other, models.MethodCard)
	require.NoError(t, err)

	// первый Authorize застревает в ожидании банка
	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.payments.sleep = func(context.Context, time.Duration) error {
		close(entered)
		<-unblock
		return nil
	}

	slow := make(chan error, 1)
	go func() {
		_, err := f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
		slow <- err
	}()
	<-entered

	_, err = f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
	_, err = f.payments.Settle(f.ctx, started.Token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	close(unblock)
	require.NoError(t, <-slow)
	f.payments.sleep = sleepCtx

	// другой токен не блокируется
	_, err = f.payments.Settle(f.ctx, token, buyer)
	require.NoError(t, err)

	_, err = f.payments.Settle(f.ctx, started.Token, buyer)
	require.NoError(t, err)

	_, err = f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{CardNumber: "4111111111111111"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidSession)
	_, err = f.payments.Settle(f.ctx, started.Token, buyer)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidSession)
	assert.Equal(t, models.ListingSold, f.listingStatus(other))
}

func TestPayment_PhoneCarriedToOrder(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller")
	buyer := f.user("buyer")
	listingID := f.listing(seller, "12.00", false)

	started, err := f.payments.Init(f.ctx, buyer, listingID, models.MethodPayPal)
	require.NoError(t, err)
	_, err = f.payments.Authorize(f.ctx, started.Token, buyer, models.AuthorizeInput{Phone: "+60123456789"})
	require.NoError(t, err)

	order, err := f.payments.Settle(f.ctx, started.Token, buyer)
	require.NoError(t, err)
	assert.Equal(t, "+60123456789", order.Phone)
	assert.Empty(t, order.InstrumentMask)

	stored, err := f.orders.Get(f.ctx, order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, "+60123456789", stored.Phone)
}
