package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/domain"
)

var (
	ErrNameRequired  = errors.New("product name is required")
	ErrNegativePrice = errors.New("price must not be negative")
	ErrNegativeStock = errors.New("stock quantity must not be negative")
)

// ProductRepository is the product store contract the service runs against.
type ProductRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Get(ctx context.Context, id string) (domain.Product, error)
	GetForUpdate(ctx context.Context, id string) (domain.Product, error)
	Save(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// OrderLister is the slice of the order store used by the delete guard. O(n)
// over all orders is acceptable at this catalog size.
type OrderLister interface {
	FindAll(ctx context.Context) ([]domain.Order, error)
}

type Service struct {
	repo   ProductRepository
	orders OrderLister
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(repo ProductRepository, orders OrderLister, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{repo: repo, orders: orders, clock: clk, log: log}
}

type ProductInput struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

func (in ProductInput) validate() error {
	if in.Name == "" {
		return ErrNameRequired
	}
	if in.Price.IsNegative() {
		return ErrNegativePrice
	}
	if in.StockQuantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}

	now := s.clock.Now()
	p := domain.Product{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// UpdateProduct replaces name, price and stock of an existing product. The
// row is locked for the duration so a concurrent reservation cannot
// interleave with the direct stock edit.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		p.Name = in.Name
		p.Price = in.Price
		p.StockQuantity = in.StockQuantity
		p.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(txCtx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// DeleteProduct refuses to remove a product still referenced by a PENDING or
// PAID order; historical (canceled/expired) references do not block. The
// product row stays locked while the guard scans, so a reservation in flight
// cannot slip in between the scan and the delete.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetForUpdate(txCtx, id); err != nil {
			return err
		}

		all, err := s.orders.FindAll(txCtx)
		if err != nil {
			return err
		}
		for _, o := range all {
			if o.Status != domain.StatusPending && o.Status != domain.StatusPaid {
				continue
			}
			for _, it := range o.Items {
				if it.ProductID == id {
					return fmt.Errorf("%w: order %s", domain.ErrProductInUse, o.ID)
				}
			}
		}

		return s.repo.Delete(txCtx, id)
	})
}

// Seed inserts the sample catalog on an empty database. Safe to call on
// every startup.
func (s *Service) Seed(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	samples := []ProductInput{
		{Name: "Laptop", Price: decimal.RequireFromString("1299.99"), StockQuantity: 10},
		{Name: "Smartphone", Price: decimal.RequireFromString("799.99"), StockQuantity: 20},
		{Name: "Headphones", Price: decimal.RequireFromString("199.99"), StockQuantity: 30},
		{Name: "Tablet", Price: decimal.RequireFromString("499.99"), StockQuantity: 15},
		{Name: "Smartwatch", Price: decimal.RequireFromString("299.99"), StockQuantity: 25},
	}
	for _, in := range samples {
		if _, err := s.CreateProduct(ctx, in); err != nil {
			return err
		}
	}
	s.log.Info("sample products seeded", zap.Int("count", len(samples)))
	return nil
}
