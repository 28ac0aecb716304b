package broker

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	OrderUpdateTopicType string = "ORDER.UPDATE"
	TickTopicType        string = "MARKETDATA.TICK"
)

// OrderUpdateEvent mirrors the order record after a status or open-order push.
type OrderUpdateEvent struct {
	OrderID          int64           `json:"order_id"`
	PermID           int64           `json:"perm_id"`
	ClientID         int             `json:"client_id"`
	Symbol           string          `json:"symbol"`
	Status           string          `json:"status"`
	Filled           decimal.Decimal `json:"filled"`
	Remaining        decimal.Decimal `json:"remaining"`
	AverageFillPrice decimal.Decimal `json:"average_fill_price"`
	WhyHeld          string          `json:"why_held,omitempty"`
	Timestamp        int64           `json:"timestamp"`
}

// TickEvent mirrors one tick delivered to an instrument.
type TickEvent struct {
	RequestID  int64           `json:"request_id"`
	ContractID int64           `json:"contract_id"`
	Symbol     string          `json:"symbol"`
	TickType   int             `json:"tick_type"`
	Value      decimal.Decimal `json:"value"`
	Text       string          `json:"text,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// Publisher fans session events out to an external bus. Publishing is
// best-effort; the session never blocks its delivery path on it.
type Publisher interface {
	Publish(ctx context.Context, topic string, evt any) error
	Close() error
}
