package factories

import (
	"math"
	"sort"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/shopspring/decimal"
)

const (
	weekendFactor      = 1.5
	fridayNightFactor  = 1.8
	summerFactor       = 1.2
	happyHourDiscount  = 0.2
	happyHourShare     = 0.3
	nightFactor        = 0.1
	peakHourFactor     = 3.0
	shoulderHourFactor = 1.0
)

// hourWeight is the relative chance of a sale landing in the hour.
func hourWeight(day time.Time, hour int) float64 {
	w := nightFactor
	switch {
	case (hour >= 11 && hour <= 14) || (hour >= 18 && hour <= 21):
		w = peakHourFactor
	case hour >= 7 && hour <= 22:
		w = shoulderHourFactor
	}
	if day.Weekday() == time.Friday && hour >= 18 {
		w *= fridayNightFactor
	}
	return w
}

// dayFactor scales the expected sales of a day.
func dayFactor(day time.Time) float64 {
	factor := 1.0
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		factor *= weekendFactor
	}
	if day.Month() >= time.June && day.Month() <= time.August {
		factor *= summerFactor
	}
	// mild yearly wave so months differ
	return factor * (1 + 0.15*math.Sin(2*math.Pi*float64(day.YearDay())/365.0))
}

// CreateSales generates the dish's history between start and end (both
// UTC, end exclusive) averaging meanPerDay sales on an ordinary day. Every
// sale carries loc. Afternoon sales after 15:00 sometimes get the happy
// hour price.
func (f *Factory) CreateSales(d *models.Dish, loc models.Location, start, end time.Time, meanPerDay float64) []models.Sale {
	sales := []models.Sale{}
	if meanPerDay <= 0 {
		return sales
	}
	discounted := d.Price.Mul(decimal.NewFromFloat(1 - happyHourDiscount)).Round(2)

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		expected := meanPerDay * dayFactor(day)
		count := int(math.Round(expected * (0.5 + f.rng.Float64())))

		weights := make([]float64, 24)
		var total float64
		for h := range weights {
			weights[h] = hourWeight(day, h)
			total += weights[h]
		}

		for i := 0; i < count; i++ {
			hour := pickWeighted(weights, total, f.rng.Float64())
			at := day.Add(time.Duration(hour)*time.Hour + time.Duration(f.rng.Intn(3600))*time.Second)

			price := d.Price
			if hour >= 15 && hour < 17 && f.rng.Float64() < happyHourShare {
				price = discounted
			}
			l := loc
			sales = append(sales, models.Sale{
				Time:     at,
				Price:    decimal.NewNullDecimal(price),
				Location: &l,
			})
		}
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Time.Before(sales[j].Time) })
	return sales
}

func pickWeighted(weights []float64, total, r float64) int {
	target := r * total
	for i, w := range weights {
		if target < w {
			return i
		}
		target -= w
	}
	return len(weights) - 1
}
