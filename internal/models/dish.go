package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Dish struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Ingredients  []string        `json:"ingredients"`
	Sales        []Sale          `json:"sales"`
	Archived     bool            `json:"archived"`
}

// Sale is one recorded purchase of a dish. Price is the snapshot taken at
// sale time and is null for records that predate price snapshots.
type Sale struct {
	Time     time.Time           `json:"time"`
	Price    decimal.NullDecimal `json:"price"`
	Location *Location           `json:"location,omitempty"`
}

// ChargedPrice returns the sale-time price, falling back to the dish's
// current price when none was recorded.
func (s Sale) ChargedPrice(fallback decimal.Decimal) decimal.Decimal {
	if s.Price.Valid {
		return s.Price.Decimal
	}
	return fallback
}

func (d *Dish) HasSales() bool {
	return len(d.Sales) > 0
}
