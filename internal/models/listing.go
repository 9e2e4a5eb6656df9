package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingApproved ListingStatus = "approved"
	ListingRejected ListingStatus = "rejected"
	ListingDelisted ListingStatus = "delisted"
	ListingSold     ListingStatus = "sold"
)

type Listing struct {
	ID                   int64           `json:"id"`
	OwnerID              int64           `json:"owner_id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Brand                string          `json:"brand"`
	Size                 string          `json:"size"`
	Condition            string          `json:"condition"`
	ImageURL             string          `json:"image_url,omitempty"`
	Price                decimal.Decimal `json:"price"`
	Exchangeable         bool            `json:"is_exchangeable"`
	Status               ListingStatus   `json:"status"`
	ModerationCode       string          `json:"moderation_code,omitempty"`
	ModerationConfidence float64         `json:"moderation_confidence"`
	Deleted              bool            `json:"-"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Visible reports whether the listing is shown to other users.
func (l *Listing) Visible() bool {
	return l.Status == ListingApproved && !l.Deleted
}

// Editable reports whether the owner may still change price or flags.
func (l *Listing) Editable() bool {
	return l.Status != ListingSold && !l.Deleted
}

type ListingDraft struct {
	Title        string
	Description  string
	Category     string
	Brand        string
	Size         string
	Condition    string
	ImageURL     string
	Price        decimal.Decimal
	Exchangeable bool
}

// ListingQuery selects non-deleted listings. Zero fields do not filter.
type ListingQuery struct {
	Status           ListingStatus
	OwnerID          int64
	ExcludeOwnerID   int64
	ExchangeableOnly bool
	Category         string
	Search           string
	OldestFirst      bool
}
