package models

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is either a free-text city/state pair or resolved coordinates.
// Sales may carry either form.
type Location struct {
	City  string   `json:"city,omitempty"`
	State string   `json:"state,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

func NewCoordinateLocation(lat, lon float64) Location {
	return Location{Lat: &lat, Lon: &lon}
}

func (l Location) Coordinates() mo.Option[Coordinates] {
	if l.Lat == nil || l.Lon == nil {
		return mo.None[Coordinates]()
	}
	return mo.Some(Coordinates{Lat: *l.Lat, Lon: *l.Lon})
}

func (l Location) IsZero() bool {
	return l.Query() == "" && l.Coordinates().IsAbsent()
}

// Query is the free-text form handed to a geocoder.
func (l Location) Query() string {
	parts := make([]string, 0, 2)
	if city := strings.TrimSpace(l.City); city != "" {
		parts = append(parts, city)
	}
	if state := strings.TrimSpace(l.State); state != "" {
		parts = append(parts, state)
	}
	return strings.Join(parts, ",")
}

// Key normalises the location for use as a cache key.
func (l Location) Key() string {
	if c, ok := l.Coordinates().Get(); ok {
		return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
	}
	return strings.ToLower(l.Query())
}

func (l Location) String() string {
	if q := l.Query(); q != "" {
		return q
	}
	return l.Key()
}
