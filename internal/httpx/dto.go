package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/burdemar/orderflow/internal/domain"
)

type ProductDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
	}
}

type OrderItemDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderDTO struct {
	ID          string          `json:"id"`
	Status      domain.Status   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiryTime  time.Time       `json:"expiry_time"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CanceledAt  *time.Time      `json:"canceled_at,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemDTO  `json:"items"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Subtotal:  it.Subtotal(),
		})
	}
	return OrderDTO{
		ID:          o.ID,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		ExpiryTime:  o.ExpiryTime,
		PaidAt:      o.PaidAt,
		CanceledAt:  o.CanceledAt,
		TotalAmount: o.TotalAmount,
		Items:       items,
	}
}
