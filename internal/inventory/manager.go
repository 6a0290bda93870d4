package inventory

import (
	"context"

	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/domain"
)

// ProductStore is the slice of the product repository the manager needs:
// ordered multi-row locking and persistence inside the same transaction.
type ProductStore interface {
	WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Save(ctx context.Context, p domain.Product) error
}

// Manager makes multi-product stock adjustments atomic. Every operation
// locks all referenced rows (deduplicated, ascending id) before mutating any
// of them, inside a serializable transaction; when the caller already runs
// in a transaction the operation joins it.
type Manager struct {
	products ProductStore
	clock    clock.Clock
}

func NewManager(products ProductStore, clk clock.Clock) *Manager {
	return &Manager{products: products, clock: clk}
}

// LockProducts acquires exclusive locks on every referenced product and
// returns them keyed by id. Fails with ErrProductNotFound if any id is
// unknown.
func (m *Manager) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	var out map[string]domain.Product
	err := m.products.WithSerializableTx(ctx, func(txCtx context.Context) error {
		locked, err := m.products.LockByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reserve decrements stock for every item, all-or-nothing: the first
// insufficiency aborts the whole batch and the transaction rolls back with
// no partial decrement.
func (m *Manager) Reserve(ctx context.Context, items []domain.ItemQuantity) error {
	if len(items) == 0 {
		return domain.ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}

	return m.products.WithSerializableTx(ctx, func(txCtx context.Context) error {
		locked, err := m.products.LockByIDs(txCtx, productIDs(items))
		if err != nil {
			return err
		}

		for _, it := range items {
			p := locked[it.ProductID]
			if p.StockQuantity < it.Quantity {
				return domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.StockQuantity,
					Requested:   it.Quantity,
				}
			}
			p.StockQuantity -= it.Quantity
			locked[it.ProductID] = p
		}

		return m.saveAll(txCtx, locked, items)
	})
}

// Release returns stock for every item. No upper bound check: the state
// machine guarantees a release happens at most once per order.
func (m *Manager) Release(ctx context.Context, items []domain.ItemQuantity) error {
	if len(items) == 0 {
		return nil
	}

	return m.products.WithSerializableTx(ctx, func(txCtx context.Context) error {
		locked, err := m.products.LockByIDs(txCtx, productIDs(items))
		if err != nil {
			return err
		}

		for _, it := range items {
			p := locked[it.ProductID]
			p.StockQuantity += it.Quantity
			locked[it.ProductID] = p
		}

		return m.saveAll(txCtx, locked, items)
	})
}

func (m *Manager) saveAll(ctx context.Context, locked map[string]domain.Product, items []domain.ItemQuantity) error {
	now := m.clock.Now()
	saved := make(map[string]struct{}, len(locked))
	for _, it := range items {
		if _, done := saved[it.ProductID]; done {
			continue
		}
		saved[it.ProductID] = struct{}{}
		p := locked[it.ProductID]
		p.UpdatedAt = now
		if err := m.products.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func productIDs(items []domain.ItemQuantity) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
