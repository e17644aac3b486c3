package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
)

type TimeOfDay string

const (
	Morning   TimeOfDay = models.TimeOfDayMorning
	Afternoon TimeOfDay = models.TimeOfDayAfternoon
	Evening   TimeOfDay = models.TimeOfDayEvening
	Night     TimeOfDay = models.TimeOfDayNight
)

type Season string

const (
	Spring Season = models.SeasonSpring
	Summer Season = models.SeasonSummer
	Fall   Season = models.SeasonFall
	Winter Season = models.SeasonWinter
)

// Derived holds the categorical buckets computed for a sale at analysis
// time. It is never persisted.
type Derived struct {
	TimeOfDay TimeOfDay `json:"time_of_day"`
	DayOfWeek string    `json:"day_of_week"`
	Month     string    `json:"month"`
	Weather   string    `json:"weather"`
}

// TimeOfDayAt buckets the wall-clock hour of t in t's own location:
// [5,12) Morning, [12,17) Afternoon, [17,21) Evening, otherwise Night.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}

func DayOfWeek(t time.Time) string {
	return t.Weekday().String()
}

func MonthName(t time.Time) string {
	return t.Month().String()
}

// MonthKey formats the YYYY-MM rollup key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Derive computes every bucket except weather, after moving t into loc.
func Derive(t time.Time, loc *time.Location) Derived {
	if loc != nil {
		t = t.In(loc)
	}
	return Derived{
		TimeOfDay: TimeOfDayAt(t),
		DayOfWeek: DayOfWeek(t),
		Month:     MonthName(t),
	}
}

// SeasonPolicy maps January..December to a season.
type SeasonPolicy [12]Season

var (
	NorthernHemisphere = SeasonPolicy{
		Winter, Winter, Spring, Spring, Spring, Summer,
		Summer, Summer, Fall, Fall, Fall, Winter,
	}
	SouthernHemisphere = SeasonPolicy{
		Summer, Summer, Fall, Fall, Fall, Winter,
		Winter, Winter, Spring, Spring, Spring, Summer,
	}
)

func (p SeasonPolicy) Of(m time.Month) Season {
	return p[m-1]
}

func SeasonPolicyFor(hemisphere string) (SeasonPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(hemisphere)) {
	case "", "north", "northern":
		return NorthernHemisphere, nil
	case "south", "southern":
		return SouthernHemisphere, nil
	default:
		return SeasonPolicy{}, fmt.Errorf("unknown hemisphere %q", hemisphere)
	}
}
