package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
