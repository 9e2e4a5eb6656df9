package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	KindSaleCredit    EntryKind = "sale_credit"
	KindPurchaseDebit EntryKind = "purchase_debit"
	KindDonation      EntryKind = "donation"
	KindWithdrawal    EntryKind = "withdrawal"
)

// IsCredit reports whether entries of this kind increase the balance.
func (k EntryKind) IsCredit() bool {
	return k == KindSaleCredit
}

func (k EntryKind) Valid() bool {
	switch k {
	case KindSaleCredit, KindPurchaseDebit, KindDonation, KindWithdrawal:
		return true
	}
	return false
}

type EntryStatus string

const (
	EntrySettled EntryStatus = "settled"
	EntryPending EntryStatus = "pending"
)

// LedgerEntry is an append-only balance movement. Amount is signed.
type LedgerEntry struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Kind             EntryKind       `json:"kind"`
	Status           EntryStatus     `json:"status"`
	Reference        string          `json:"reference,omitempty"`
	PayoutInstrument string          `json:"payout_instrument,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type DonationSource string

const (
	DonationFromTransaction DonationSource = "transaction"
	DonationManual          DonationSource = "manual"
)

type DonationRecord struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	OrderID   *int64          `json:"order_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Source    DonationSource  `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

type BalanceSummary struct {
	UserID         int64           `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalDonations decimal.Decimal `json:"total_donations"`
}
