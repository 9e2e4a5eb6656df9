package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderHeld     OrderStatus = "held"
	OrderShipped  OrderStatus = "shipped"
	OrderReleased OrderStatus = "released"
)

// EscrowedOrder holds the buyer's payment until receipt is confirmed.
type EscrowedOrder struct {
	ID             int64           `json:"id"`
	BuyerID        int64           `json:"buyer_id"`
	SellerID       int64           `json:"seller_id"`
	ListingID      int64           `json:"listing_id"`
	Amount         decimal.Decimal `json:"amount"`
	DonationShare  decimal.Decimal `json:"donation_share"`
	Status         OrderStatus     `json:"status"`
	Method         PaymentMethod   `json:"payment_method"`
	InstrumentMask string          `json:"instrument_mask,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SellerCredit is what the seller receives on release.
func (o *EscrowedOrder) SellerCredit() decimal.Decimal {
	return o.Amount.Sub(o.DonationShare)
}

func (o *EscrowedOrder) IsParty(userID int64) bool {
	return o.BuyerID == userID || o.SellerID == userID
}
