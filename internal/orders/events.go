package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TopicOrderEvents carries every lifecycle event, keyed by order id so all
// events for one order keep their order.
const TopicOrderEvents = "order.events"

const (
	EventOrderCreated  = "OrderCreated"
	EventOrderPaid     = "OrderPaid"
	EventOrderCanceled = "OrderCanceled"
	EventOrderExpired  = "OrderExpired"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	OrderID      string          `json:"order_id"`
	Payload      json.RawMessage `json:"payload"`
}

type ItemSnapshot struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ExpiryTime  time.Time       `json:"expiry_time"`
	Items       []ItemSnapshot  `json:"items"`
}

type OrderPaidPayload struct {
	OrderID string    `json:"order_id"`
	PaidAt  time.Time `json:"paid_at"`
}

type OrderCanceledPayload struct {
	OrderID    string    `json:"order_id"`
	CanceledAt time.Time `json:"canceled_at"`
}

type OrderExpiredPayload struct {
	OrderID    string    `json:"order_id"`
	ExpiryTime time.Time `json:"expiry_time"`
}

// PartitionKey keeps all events of one order on one partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
