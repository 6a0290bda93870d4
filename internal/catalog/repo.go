package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/burdemar/orderflow/internal/domain"
	"github.com/burdemar/orderflow/internal/postgres"
)

// Repo is the product store. All statements route through postgres.DB so
// they join whatever transaction the caller opened.
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

const productColumns = `id, name, price, stock_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the product row until the enclosing transaction ends.
// Callers must be inside a transaction, otherwise the lock is released
// immediately and the read is unprotected.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product for update: %w", err)
	}
	return p, nil
}

// LockByIDs deduplicates ids and locks every matching row in ascending id
// order, so two operations reserving overlapping product sets always acquire
// locks in the same order and cannot deadlock each other. Fails with
// ErrProductNotFound if any id is missing.
func (r *Repo) LockByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	distinct := dedupeSorted(ids)
	if len(distinct) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		distinct)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(distinct))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("lock products: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	for _, id := range distinct {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
	}
	return out, nil
}

func (r *Repo) Save(ctx context.Context, p domain.Product) error {
	_, err := r.DB.Exec(ctx, `
INSERT INTO products (id, name, price, stock_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    price = EXCLUDED.price,
    stock_quantity = EXCLUDED.stock_quantity,
    updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Price, p.StockQuantity, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *Repo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
