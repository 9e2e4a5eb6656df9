package models

import (
	"encoding/json"
	"time"
)

const (
	TopicOrders    = "marketplace.orders"
	TopicExchanges = "marketplace.exchanges"
	TopicLedger    = "marketplace.ledger"
)

const (
	EventOrderCreated      = "order.created"
	EventOrderShipped      = "order.shipped"
	EventOrderReleased     = "order.released"
	EventExchangeRequested = "exchange.requested"
	EventExchangeResponded = "exchange.responded"
	EventExchangeCompleted = "exchange.completed"
	EventLedgerPosted      = "ledger.entry_posted"
)

type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type LedgerPostedData struct {
	EntryID int64     `json:"entry_id"`
	UserID  int64     `json:"user_id"`
	Kind    EntryKind `json:"kind"`
	Amount  string    `json:"amount"`
}
