package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/domain"
	kafkax "github.com/burdemar/orderflow/internal/kafka"
)

// OrderRepository is the order store contract the lifecycle manager runs
// against.
type OrderRepository interface {
	WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	Save(ctx context.Context, o domain.Order) error
	FindAll(ctx context.Context) ([]domain.Order, error)
	FindExpired(ctx context.Context, asOf time.Time) ([]domain.Order, error)
}

// Inventory reserves and releases stock. Calls made inside a transaction
// join it, so a reservation and the order insert commit or roll back as one.
type Inventory interface {
	LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Reserve(ctx context.Context, items []domain.ItemQuantity) error
	Release(ctx context.Context, items []domain.ItemQuantity) error
}

// EventPublisher taps lifecycle transitions onto the event stream.
// Publishing is fire-and-forget; core correctness never depends on it.
type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service owns the order state machine and orchestrates the inventory
// manager around it.
type Service struct {
	repo      OrderRepository
	inventory Inventory
	clock     clock.Clock
	publisher EventPublisher
	producer  string
	log       *zap.Logger
}

func NewService(repo OrderRepository, inv Inventory, clk clock.Clock, log *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		inventory: inv,
		clock:     clk,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p EventPublisher, producer string) ServiceOption {
	return func(s *Service) {
		s.publisher = p
		s.producer = producer
	}
}

// CreateOrder resolves products, snapshots their prices, reserves stock and
// persists the new PENDING order, all in one transaction.
func (s *Service) CreateOrder(ctx context.Context, items []domain.ItemQuantity) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var order domain.Order
	err := s.repo.WithSerializableTx(ctx, func(txCtx context.Context) error {
		products, err := s.inventory.LockProducts(txCtx, ids)
		if err != nil {
			return err
		}

		orderItems := make([]domain.OrderItem, 0, len(items))
		for _, it := range items {
			p := products[it.ProductID]
			orderItems = append(orderItems, domain.OrderItem{
				ID:        uuid.NewString(),
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
			})
		}

		if err := s.inventory.Reserve(txCtx, items); err != nil {
			return err
		}

		order = domain.NewOrder(uuid.NewString(), orderItems, s.clock.Now())
		return s.repo.Save(txCtx, order)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishCreated(order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.FindAll(ctx)
}

// PayOrder moves a pending order to PAID. If the payment window already
// closed, the order transitions to EXPIRED and its stock is released; that
// side effect commits even though the pay call itself fails with an
// invalid-state error.
func (s *Service) PayOrder(ctx context.Context, id string) (domain.Order, error) {
	var (
		order      domain.Order
		expiredNow bool
	)
	err := s.repo.WithSerializableTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if o.Status == domain.StatusPending && o.Expired(now) {
			if err := o.Apply(domain.EventExpire, now); err != nil {
				return err
			}
			if err := s.repo.Save(txCtx, o); err != nil {
				return err
			}
			if err := s.inventory.Release(txCtx, o.Quantities()); err != nil {
				return err
			}
			order = o
			expiredNow = true
			return nil
		}

		if err := o.Apply(domain.EventPay, now); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if expiredNow {
		s.publishExpired(order)
		return domain.Order{}, domain.InvalidStateError{
			Status: domain.StatusExpired,
			Event:  domain.EventPay,
			Reason: "cannot pay for an expired order",
		}
	}

	s.publish(EventOrderPaid, order.ID, OrderPaidPayload{OrderID: order.ID, PaidAt: *order.PaidAt})
	return order, nil
}

// CancelOrder moves a pending order to CANCELED and releases its stock.
func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := s.repo.WithSerializableTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := o.Apply(domain.EventCancel, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, o); err != nil {
			return err
		}
		if err := s.inventory.Release(txCtx, o.Quantities()); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(EventOrderCanceled, order.ID, OrderCanceledPayload{OrderID: order.ID, CanceledAt: *order.CanceledAt})
	return order, nil
}

// ExpireDueOrders expires every pending order whose window closed before
// asOf. Each order runs in its own transaction; one failing order never
// blocks the rest. Returns how many orders were expired.
func (s *Service) ExpireDueOrders(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.repo.FindExpired(ctx, asOf)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range due {
		if err := s.expireOne(ctx, o.ID, asOf); err != nil {
			s.log.Error("expire order", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, id string, asOf time.Time) error {
	var order domain.Order
	skipped := false
	err := s.repo.WithSerializableTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		// Recheck under lock: a concurrent pay/cancel may have won.
		if o.Status != domain.StatusPending || !o.Expired(asOf) {
			skipped = true
			return nil
		}
		if err := o.Apply(domain.EventExpire, asOf); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, o); err != nil {
			return err
		}
		if err := s.inventory.Release(txCtx, o.Quantities()); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil || skipped {
		return err
	}

	s.publishExpired(order)
	return nil
}

func (s *Service) publishCreated(o domain.Order) {
	items := make([]ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemSnapshot{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	s.publish(EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:     o.ID,
		TotalAmount: o.TotalAmount,
		ExpiryTime:  o.ExpiryTime,
		Items:       items,
	})
}

func (s *Service) publishExpired(o domain.Order) {
	s.publish(EventOrderExpired, o.ID, OrderExpiredPayload{OrderID: o.ID, ExpiryTime: o.ExpiryTime})
}

func (s *Service) publish(eventType, orderID string, payload any) {
	if s.publisher == nil {
		return
	}
	ev := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   s.clock.Now(),
		Producer:     s.producer,
		OrderID:      orderID,
		Payload:      kafkax.MustMarshal(payload),
	}
	s.publisher.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
