package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryWindow is how long after creation a pending order may still be paid.
const ExpiryWindow = 30 * time.Minute

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	// Price snapshots the product price at order creation; later product
	// edits never change historical orders.
	Price decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID          string
	Status      Status
	CreatedAt   time.Time
	ExpiryTime  time.Time
	PaidAt      *time.Time
	CanceledAt  *time.Time
	TotalAmount decimal.Decimal
	Items       []OrderItem
}

// NewOrder assembles a pending order from priced items. TotalAmount and
// ExpiryTime are fixed here and never change afterwards.
func NewOrder(id string, items []OrderItem, now time.Time) Order {
	total := decimal.Zero
	for i := range items {
		items[i].OrderID = id
		total = total.Add(items[i].Subtotal())
	}
	return Order{
		ID:          id,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiryTime:  now.Add(ExpiryWindow),
		TotalAmount: total,
		Items:       items,
	}
}

// Expired reports whether the payment window has closed at the given instant.
func (o Order) Expired(now time.Time) bool {
	return !now.Before(o.ExpiryTime)
}

// Apply runs one state-machine event against the order, setting the
// corresponding timestamp. Only Status and the timestamps mutate; items and
// totals stay as created.
func (o *Order) Apply(ev Event, now time.Time) error {
	next, err := Transition(o.Status, ev)
	if err != nil {
		return err
	}
	o.Status = next
	switch ev {
	case EventPay:
		t := now
		o.PaidAt = &t
	case EventCancel:
		t := now
		o.CanceledAt = &t
	}
	return nil
}

// ItemQuantity is the (product, quantity) pair exchanged with the inventory
// manager.
type ItemQuantity struct {
	ProductID string
	Quantity  int
}

// Quantities projects an order's items for stock release.
func (o Order) Quantities() []ItemQuantity {
	out := make([]ItemQuantity, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, ItemQuantity{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
