package models

import "time"

type ExchangeStatus string

const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeAccepted  ExchangeStatus = "accepted"
	ExchangeRejected  ExchangeStatus = "rejected"
	ExchangeCompleted ExchangeStatus = "completed"
)

type ExchangeParty string

const (
	PartyRequester ExchangeParty = "requester"
	PartyReceiver  ExchangeParty = "receiver"
)

type ExchangeRequest struct {
	ID                 int64          `json:"id"`
	RequesterID        int64          `json:"requester_id"`
	ReceiverID         int64          `json:"receiver_id"`
	RequesterListingID int64          `json:"requester_listing_id"`
	ReceiverListingID  int64          `json:"receiver_listing_id"`
	Status             ExchangeStatus `json:"status"`
	RequesterConfirmed bool           `json:"requester_confirmed"`
	ReceiverConfirmed  bool           `json:"receiver_confirmed"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// PartyOf returns which side userID is on, or false if neither.
func (r *ExchangeRequest) PartyOf(userID int64) (ExchangeParty, bool) {
	switch userID {
	case r.RequesterID:
		return PartyRequester, true
	case r.ReceiverID:
		return PartyReceiver, true
	}
	return "", false
}

func (r *ExchangeRequest) BothConfirmed() bool {
	return r.RequesterConfirmed && r.ReceiverConfirmed
}

type ExchangeProposal struct {
	ReceiverID         int64 `json:"receiver_id"`
	RequesterListingID int64 `json:"requester_listing_id"`
	ReceiverListingID  int64 `json:"receiver_listing_id"`
}
