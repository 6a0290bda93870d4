package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/burdemar/orderflow/internal/domain"
	"github.com/burdemar/orderflow/internal/postgres"
)

// Repo is the order store. Orders and their items persist as a unit: items
// are never written or read independently of their parent order.
type Repo struct {
	DB *postgres.DB
}

func NewRepo(db *postgres.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.DB.WithTx(ctx, fn)
}

func (r *Repo) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.DB.WithSerializableTx(ctx, fn)
}

const orderColumns = `id, status, created_at, expiry_time, paid_at, canceled_at, total_amount`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Status, &o.CreatedAt, &o.ExpiryTime, &o.PaidAt, &o.CanceledAt, &o.TotalAmount)
	return o, err
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, []*domain.Order{&o}); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// GetForUpdate locks the order row so concurrent pay/cancel/expire calls on
// the same order serialize on it.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order for update: %w", err)
	}
	if err := r.loadItems(ctx, []*domain.Order{&o}); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// Save upserts the order and rewrites its item list as a unit.
func (r *Repo) Save(ctx context.Context, o domain.Order) error {
	_, err := r.DB.Exec(ctx, `
INSERT INTO orders (id, status, created_at, expiry_time, paid_at, canceled_at, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    paid_at = EXCLUDED.paid_at,
    canceled_at = EXCLUDED.canceled_at`,
		o.ID, o.Status, o.CreatedAt, o.ExpiryTime, o.PaidAt, o.CanceledAt, o.TotalAmount)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	for _, it := range o.Items {
		_, err := r.DB.Exec(ctx, `
INSERT INTO order_items (id, order_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price)
		if err != nil {
			return fmt.Errorf("save order item: %w", err)
		}
	}
	return nil
}

func (r *Repo) FindAll(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("find all orders: %w", err)
	}
	return r.collect(ctx, rows)
}

// FindExpired returns pending orders whose payment window closed before asOf.
func (r *Repo) FindExpired(ctx context.Context, asOf time.Time) ([]domain.Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 AND expiry_time < $2 ORDER BY expiry_time`,
		domain.StatusPending, asOf)
	if err != nil {
		return nil, fmt.Errorf("find expired orders: %w", err)
	}
	return r.collect(ctx, rows)
}

func (r *Repo) collect(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect orders: %w", err)
	}

	refs := make([]*domain.Order, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.DB.Query(ctx, `
SELECT id, order_id, product_id, quantity, price
FROM order_items
WHERE order_id = ANY($1)
ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
