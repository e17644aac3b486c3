package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	ErrNotArray    = errors.New("dishes payload is not a JSON array")
	ErrInvalidJSON = errors.New("dishes payload is not valid JSON")
)

// Issue records a malformed dish or sale that was repaired or dropped at the
// input boundary. Sale is -1 for dish-level issues.
type Issue struct {
	Dish   string `json:"dish"`
	Sale   int    `json:"sale"`
	Reason string `json:"reason"`
}

var saleTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSaleTime accepts RFC 3339 timestamps and the offset-less ISO forms
// browsers tend to produce. Offset-less values are read in loc.
func ParseSaleTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range saleTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// DecodeDishes reads a JSON array of dishes. Only a payload that is not an
// array is an error; malformed elements are zero-filled or skipped and
// reported as issues.
func DecodeDishes(data []byte, loc *time.Location) ([]Dish, []Issue, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, nil, ErrNotArray
	}

	elements := root.Array()
	dishes := make([]Dish, 0, len(elements))
	var issues []Issue
	for idx, node := range elements {
		dish, dishIssues, ok := decodeDish(idx, node, loc)
		issues = append(issues, dishIssues...)
		if ok {
			dishes = append(dishes, dish)
		}
	}
	return dishes, issues, nil
}

func decodeDish(idx int, node gjson.Result, loc *time.Location) (Dish, []Issue, bool) {
	var issues []Issue
	if !node.IsObject() {
		return Dish{}, []Issue{{Dish: fmt.Sprintf("#%d", idx), Sale: -1, Reason: "not an object"}}, false
	}

	name := strings.TrimSpace(node.Get("name").String())
	if name == "" {
		return Dish{}, []Issue{{Dish: fmt.Sprintf("#%d", idx), Sale: -1, Reason: "missing name"}}, false
	}

	dish := Dish{
		ID:           node.Get("id").String(),
		RestaurantID: node.Get("restaurant_id").String(),
		Name:         name,
		Description:  node.Get("description").String(),
		Archived:     node.Get("archived").Bool(),
		Ingredients:  []string{},
		Sales:        []Sale{},
	}

	price, reason := decodeAmount(node.Get("price"))
	if reason != "" {
		issues = append(issues, Issue{Dish: name, Sale: -1, Reason: "price " + reason})
	}
	dish.Price = price

	for _, ing := range node.Get("ingredients").Array() {
		if s := strings.TrimSpace(ing.String()); s != "" {
			dish.Ingredients = append(dish.Ingredients, s)
		}
	}

	sales := node.Get("sales")
	switch {
	case !sales.Exists() || sales.Type == gjson.Null:
		issues = append(issues, Issue{Dish: name, Sale: -1, Reason: "missing sales"})
	case !sales.IsArray():
		issues = append(issues, Issue{Dish: name, Sale: -1, Reason: "sales is not an array"})
	default:
		for i, s := range sales.Array() {
			sale, reason, ok := decodeSale(s, loc)
			if reason != "" {
				issues = append(issues, Issue{Dish: name, Sale: i, Reason: reason})
			}
			if ok {
				dish.Sales = append(dish.Sales, sale)
			}
		}
	}
	return dish, issues, true
}

func decodeSale(node gjson.Result, loc *time.Location) (Sale, string, bool) {
	if !node.IsObject() {
		return Sale{}, "not an object", false
	}
	raw := node.Get("time")
	if raw.Type != gjson.String {
		return Sale{}, "missing time", false
	}
	at, err := ParseSaleTime(raw.String(), loc)
	if err != nil {
		return Sale{}, err.Error(), false
	}

	sale := Sale{Time: at}
	var reason string
	if p := node.Get("price"); p.Exists() && p.Type != gjson.Null {
		amount, why := decodeAmount(p)
		if why == "" {
			sale.Price = decimal.NewNullDecimal(amount)
		} else {
			reason = "price " + why + ", using dish price"
		}
	}

	if l := node.Get("location"); l.IsObject() {
		location := Location{
			City:  l.Get("city").String(),
			State: l.Get("state").String(),
		}
		lat, lon := l.Get("lat"), l.Get("lon")
		if lat.Type == gjson.Number && lon.Type == gjson.Number {
			location.Lat = &lat.Num
			location.Lon = &lon.Num
		}
		if !location.IsZero() {
			sale.Location = &location
		}
	}
	return sale, reason, true
}

// decodeAmount returns a non-negative amount and, when the value had to be
// repaired, the reason.
func decodeAmount(node gjson.Result) (decimal.Decimal, string) {
	if !node.Exists() || node.Type == gjson.Null {
		return decimal.Zero, "missing"
	}
	var (
		amount decimal.Decimal
		err    error
	)
	switch node.Type {
	case gjson.Number:
		amount, err = decimal.NewFromString(node.Raw)
	case gjson.String:
		amount, err = decimal.NewFromString(strings.TrimSpace(node.Str))
	default:
		return decimal.Zero, "not a number"
	}
	if err != nil {
		return decimal.Zero, "not a number"
	}
	if amount.IsNegative() {
		return decimal.Zero, "negative"
	}
	return amount, ""
}

// Normalize applies the same boundary rules to dishes that did not come
// through DecodeDishes, e.g. rows read from a store.
func Normalize(dishes []Dish) ([]Dish, []Issue) {
	out := make([]Dish, 0, len(dishes))
	var issues []Issue
	for i, d := range dishes {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			issues = append(issues, Issue{Dish: fmt.Sprintf("#%d", i), Sale: -1, Reason: "missing name"})
			continue
		}
		d.Name = name
		if d.Price.IsNegative() {
			issues = append(issues, Issue{Dish: name, Sale: -1, Reason: "price negative"})
			d.Price = decimal.Zero
		}
		sales := make([]Sale, 0, len(d.Sales))
		for j, s := range d.Sales {
			if s.Time.IsZero() {
				issues = append(issues, Issue{Dish: name, Sale: j, Reason: "missing time"})
				continue
			}
			if s.Price.Valid && s.Price.Decimal.IsNegative() {
				issues = append(issues, Issue{Dish: name, Sale: j, Reason: "price negative, using dish price"})
				s.Price = decimal.NullDecimal{}
			}
			sales = append(sales, s)
		}
		d.Sales = sales
		out = append(out, d)
	}
	return out, issues
}
