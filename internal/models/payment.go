package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "Credit Card"
	MethodPayPal PaymentMethod = "PayPal"
	MethodFPX    PaymentMethod = "FPX"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodFPX:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionApproved SessionStatus = "approved"
	SessionConsumed SessionStatus = "consumed"
)

// PaymentSession is the short-lived state of one checkout attempt.
type PaymentSession struct {
	Token           string          `json:"token"`
	ListingID       int64           `json:"listing_id"`
	BuyerID         int64           `json:"buyer_id"`
	SellerID        int64           `json:"seller_id"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          SessionStatus   `json:"status"`
	InstrumentMask  string          `json:"instrument_mask,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	DonationPercent decimal.Decimal `json:"donation_percent"`
	DonationAmount  decimal.Decimal `json:"donation_amount"`
	AuthCode        string          `json:"auth_code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

func (s *PaymentSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type AuthorizeInput struct {
	CardNumber      string
	Phone           string
	DonationPercent *decimal.Decimal
}

type PaymentInit struct {
	Token     string          `json:"payment_token"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ExpiresIn int             `json:"expires_in"`
}

type PaymentAuthorization struct {
	AuthCode        string          `json:"auth_code"`
	DonationPercent decimal.Decimal `json:"donation_percent"`
	DonationAmount  decimal.Decimal `json:"donation_amount"`
}
