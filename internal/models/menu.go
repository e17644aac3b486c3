package models

import "github.com/shopspring/decimal"

// MenuDish is a snapshot of a dish taken when it was added to a menu. It is
// not kept in sync with later price edits.
type MenuDish struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Menu struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurant_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Dishes       []MenuDish `json:"dishes"`
	IsLive       bool       `json:"is_live"`
}

func SnapshotDish(d *Dish) MenuDish {
	return MenuDish{ID: d.ID, Name: d.Name, Price: d.Price}
}
