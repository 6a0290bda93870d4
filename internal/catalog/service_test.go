package catalog

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/domain"
)

type fakeProductRepo struct {
	products map[string]domain.Product
	locked   []string
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]domain.Product)}
}

func (r *fakeProductRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	r.locked = append(r.locked, id)
	return r.Get(ctx, id)
}

func (r *fakeProductRepo) Save(ctx context.Context, p domain.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) Count(ctx context.Context) (int, error) {
	return len(r.products), nil
}

func (r *fakeProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeOrderLister struct {
	orders []domain.Order
}

func (f *fakeOrderLister) FindAll(ctx context.Context) ([]domain.Order, error) {
	return f.orders, nil
}

func newTestService() (*Service, *fakeProductRepo, *fakeOrderLister) {
	repo := newFakeProductRepo()
	orders := &fakeOrderLister{}
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	return NewService(repo, orders, clk, zap.NewNop()), repo, orders
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	p, err := svc.CreateProduct(ctx, ProductInput{
		Name:          "Laptop",
		Price:         decimal.RequireFromString("1299.99"),
		StockQuantity: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Laptop", p.Name)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	saved, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, saved)
}

func TestProductValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	cases := []struct {
		name string
		in   ProductInput
		want error
	}{
		{"missing name", ProductInput{Price: decimal.NewFromInt(1)}, ErrNameRequired},
		{"negative price", ProductInput{Name: "x", Price: decimal.NewFromInt(-1)}, ErrNegativePrice},
		{"negative stock", ProductInput{Name: "x", Price: decimal.NewFromInt(1), StockQuantity: -1}, ErrNegativeStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)

			_, err = svc.UpdateProduct(ctx, "any", tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("zero price is allowed", func(t *testing.T) {
		_, err := svc.CreateProduct(ctx, ProductInput{Name: "Freebie"})
		assert.NoError(t, err)
	})
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: "Laptop", Price: decimal.NewFromInt(1000), StockQuantity: 10})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, p.ID, ProductInput{
		Name:          "Laptop Pro",
		Price:         decimal.NewFromInt(1500),
		StockQuantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, 4, updated.StockQuantity)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	_, err = svc.UpdateProduct(ctx, "missing", ProductInput{Name: "x", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeProductRepo, *fakeOrderLister, domain.Product) {
		svc, repo, orders := newTestService()
		p, err := svc.CreateProduct(ctx, ProductInput{Name: "Laptop", Price: decimal.NewFromInt(1000), StockQuantity: 10})
		require.NoError(t, err)
		return svc, repo, orders, p
	}

	orderWith := func(status domain.Status, productID string) domain.Order {
		return domain.Order{
			ID:     "o-" + string(status),
			Status: status,
			Items:  []domain.OrderItem{{ID: "oi-1", ProductID: productID, Quantity: 1}},
		}
	}

	t.Run("unreferenced product is deleted", func(t *testing.T) {
		svc, repo, _, p := setup(t)
		require.NoError(t, svc.DeleteProduct(ctx, p.ID))
		_, err := repo.Get(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("pending reference blocks deletion", func(t *testing.T) {
		svc, repo, orders, p := setup(t)
		orders.orders = []domain.Order{orderWith(domain.StatusPending, p.ID)}

		err := svc.DeleteProduct(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrProductInUse)
		_, err = repo.Get(ctx, p.ID)
		assert.NoError(t, err)
	})

	t.Run("paid reference blocks deletion", func(t *testing.T) {
		svc, _, orders, p := setup(t)
		orders.orders = []domain.Order{orderWith(domain.StatusPaid, p.ID)}
		assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), domain.ErrProductInUse)
	})

	t.Run("canceled and expired references do not block", func(t *testing.T) {
		svc, _, orders, p := setup(t)
		orders.orders = []domain.Order{
			orderWith(domain.StatusCanceled, p.ID),
			orderWith(domain.StatusExpired, p.ID),
		}
		assert.NoError(t, svc.DeleteProduct(ctx, p.ID))
	})

	t.Run("references to other products do not block", func(t *testing.T) {
		svc, _, orders, p := setup(t)
		orders.orders = []domain.Order{orderWith(domain.StatusPending, "someone-else")}
		assert.NoError(t, svc.DeleteProduct(ctx, p.ID))
	})

	t.Run("unknown product", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		assert.ErrorIs(t, svc.DeleteProduct(ctx, "missing"), domain.ErrProductNotFound)
	})

	t.Run("guard runs with the product row locked", func(t *testing.T) {
		svc, repo, _, p := setup(t)
		require.NoError(t, svc.DeleteProduct(ctx, p.ID))
		assert.Contains(t, repo.locked, p.ID)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	require.NoError(t, svc.Seed(ctx))
	products, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)

	byName := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byName[p.Name] = p
	}
	laptop, ok := byName["Laptop"]
	require.True(t, ok)
	assert.True(t, laptop.Price.Equal(decimal.RequireFromString("1299.99")))
	assert.Equal(t, 10, laptop.StockQuantity)

	// Seeding again is a no-op.
	require.NoError(t, svc.Seed(ctx))
	products, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)
}
