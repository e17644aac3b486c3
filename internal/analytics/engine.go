package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/weather"
	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var log = logging.MustGetLogger("analytics")

// WeatherLookup resolves the condition label for a location on a day. It
// must not fail: unresolvable lookups come back as a sentinel label.
type WeatherLookup interface {
	Lookup(ctx context.Context, loc models.Location, day time.Time) string
}

type WeatherLookupFunc func(ctx context.Context, loc models.Location, day time.Time) string

func (f WeatherLookupFunc) Lookup(ctx context.Context, loc models.Location, day time.Time) string {
	return f(ctx, loc, day)
}

type Options struct {
	// Location is the timezone every sale is bucketed in.
	Location *time.Location
	Seasons  SeasonPolicy
	// CostRatio is the share of price counted as cost, 0.6 when unset.
	CostRatio             decimal.NullDecimal
	SignificanceThreshold float64
	ANOVAMode             ANOVAMode
	TopN                  int
	BottomN               int
	ExcludeArchived       bool
	// MaxInFlight bounds concurrent weather lookups.
	MaxInFlight int
	// DefaultLocation is used for sales that carry no location of their own.
	DefaultLocation models.Location
	Progress        func(done, total int)
	Clock           func() time.Time
	NewRunID        func() string
}

func DefaultOptions() Options {
	return Options{
		Location:              time.UTC,
		Seasons:               NorthernHemisphere,
		CostRatio:             decimal.NewNullDecimal(decimal.NewFromFloat(0.6)),
		SignificanceThreshold: 0.05,
		ANOVAMode:             MonthlyTotals,
		TopN:                  5,
		BottomN:               3,
		MaxInFlight:           4,
		Clock:                 time.Now,
		NewRunID:              uuid.NewString,
	}
}

type Engine struct {
	weather WeatherLookup
	opts    Options
}

func NewEngine(lookup WeatherLookup, opts Options) *Engine {
	defaults := DefaultOptions()
	if lookup == nil {
		lookup = weather.Static(weather.ConditionUnknown)
	}
	if opts.Location == nil {
		opts.Location = defaults.Location
	}
	if opts.Seasons == (SeasonPolicy{}) {
		opts.Seasons = defaults.Seasons
	}
	if !opts.CostRatio.Valid {
		opts.CostRatio = defaults.CostRatio
	}
	if opts.SignificanceThreshold <= 0 {
		opts.SignificanceThreshold = defaults.SignificanceThreshold
	}
	if opts.ANOVAMode == "" {
		opts.ANOVAMode = defaults.ANOVAMode
	}
	if opts.TopN <= 0 {
		opts.TopN = defaults.TopN
	}
	if opts.BottomN <= 0 {
		opts.BottomN = defaults.BottomN
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaults.MaxInFlight
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.NewRunID == nil {
		opts.NewRunID = defaults.NewRunID
	}
	return &Engine{weather: lookup, opts: opts}
}

func (e *Engine) Options() Options {
	return e.opts
}

// RunJSON decodes a JSON array of dishes and runs a pass over it. Decode
// issues are carried into the report.
func (e *Engine) RunJSON(ctx context.Context, data []byte) (*Report, error) {
	dishes, issues, err := models.DecodeDishes(data, e.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("decode dishes: %w", err)
	}
	return e.run(ctx, dishes, issues)
}

func (e *Engine) Run(ctx context.Context, dishes []models.Dish) (*Report, error) {
	return e.run(ctx, dishes, nil)
}

func (e *Engine) run(ctx context.Context, dishes []models.Dish, issues []models.Issue) (*Report, error) {
	dishes, normalizeIssues := models.Normalize(dishes)
	issues = append(issues, normalizeIssues...)
	if e.opts.ExcludeArchived {
		dishes = lo.Reject(dishes, func(d models.Dish, _ int) bool { return d.Archived })
	}
	for _, is := range issues {
		log.Debugf("input issue: dish=%s sale=%d %s", is.Dish, is.Sale, is.Reason)
	}

	report := newReport()
	report.RunID = e.opts.NewRunID()
	report.GeneratedAt = e.opts.Clock().UTC()
	report.Issues = append(report.Issues, issues...)

	conditions, lookups, err := e.enrichWeather(ctx, dishes)
	if err != nil {
		return nil, err
	}
	report.WeatherLookups = lookups

	keep := decimal.NewFromInt(1).Sub(e.opts.CostRatio.Decimal)
	monthly := make(map[string]*MonthlyAggregate)

	for _, dish := range dishes {
		stats := DishStats{
			ID:               dish.ID,
			Name:             dish.Name,
			Description:      dish.Description,
			Price:            dish.Price,
			Ingredients:      lo.Ternary(dish.Ingredients == nil, []string{}, dish.Ingredients),
			Archived:         dish.Archived,
			TotalRevenue:     decimal.Zero,
			TotalProfit:      decimal.Zero,
			AverageSalePrice: decimal.Zero,
			Sales:            make([]EnrichedSale, 0, len(dish.Sales)),
		}
		daily := newDailySales(e.opts.Location)

		for _, sale := range dish.Sales {
			at := sale.Time.In(e.opts.Location)
			price := sale.ChargedPrice(dish.Price)
			derived := Derive(at, e.opts.Location)
			derived.Weather = conditions[lookupKey(at, e.saleLocation(sale))]

			stats.Sales = append(stats.Sales, EnrichedSale{
				Time:     sale.Time,
				Price:    price,
				Location: sale.Location,
				Derived:  derived,
			})
			stats.TotalSales++
			stats.TotalRevenue = stats.TotalRevenue.Add(price)

			key := MonthKey(at)
			m, ok := monthly[key]
			if !ok {
				m = &MonthlyAggregate{Month: key, TotalRevenue: decimal.Zero}
				monthly[key] = m
			}
			m.TotalSales++
			m.TotalRevenue = m.TotalRevenue.Add(price)

			increment(report.Seasonal, e.opts.Seasons.Of(at.Month()), dish.Name)
			increment(report.TimeOfDay, derived.TimeOfDay, dish.Name)
			increment(report.DayOfWeek, derived.DayOfWeek, dish.Name)

			byDish, ok := report.Weather[derived.Weather]
			if !ok {
				byDish = make(map[string]WeatherStats)
				report.Weather[derived.Weather] = byDish
			}
			ws := byDish[dish.Name]
			ws.Count++
			ws.Revenue = ws.Revenue.Add(price)
			byDish[dish.Name] = ws

			daily.add(at)
		}

		stats.TotalProfit = stats.TotalRevenue.Mul(keep)
		if stats.TotalSales > 0 {
			stats.AverageSalePrice = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalSales)))
			report.Summary.DishesWithSales++
		}
		report.Significance[dish.Name] = significance(daily, e.opts.ANOVAMode, e.opts.SignificanceThreshold)

		report.Summary.Dishes++
		report.Summary.TotalSales += stats.TotalSales
		report.Summary.TotalRevenue = report.Summary.TotalRevenue.Add(stats.TotalRevenue)
		report.Summary.TotalProfit = report.Summary.TotalProfit.Add(stats.TotalProfit)
		report.Dishes = append(report.Dishes, stats)
	}

	if report.Summary.TotalSales > 0 {
		report.Summary.AverageOrderValue = report.Summary.TotalRevenue.Div(decimal.NewFromInt(int64(report.Summary.TotalSales)))
	}

	months := lo.Keys(monthly)
	sort.Strings(months)
	for _, k := range months {
		report.Monthly = append(report.Monthly, *monthly[k])
	}

	report.TopBySales = rank(report.Dishes, e.opts.TopN, func(a, b DishStats) bool {
		return a.TotalSales > b.TotalSales
	})
	report.TopByRevenue = rank(report.Dishes, e.opts.TopN, func(a, b DishStats) bool {
		return a.TotalRevenue.GreaterThan(b.TotalRevenue)
	})
	report.TopByProfit = rank(report.Dishes, e.opts.TopN, func(a, b DishStats) bool {
		return a.TotalProfit.GreaterThan(b.TotalProfit)
	})
	report.BottomBySales = rank(report.Dishes, e.opts.BottomN, func(a, b DishStats) bool {
		return a.TotalSales < b.TotalSales
	})

	log.Infof("analytics run %s: %d dishes, %d sales, %d weather keys (%d unknown, %d failed), %d issues",
		report.RunID, report.Summary.Dishes, report.Summary.TotalSales,
		lookups.Keys, lookups.Unknown, lookups.Failed, len(report.Issues))
	return report, nil
}

func (e *Engine) saleLocation(sale models.Sale) models.Location {
	if sale.Location != nil && !sale.Location.IsZero() {
		return *sale.Location
	}
	return e.opts.DefaultLocation
}

func lookupKey(at time.Time, loc models.Location) string {
	return DayKey(at) + "|" + loc.Key()
}

// enrichWeather resolves one condition per distinct (day, location) pair
// with at most MaxInFlight lookups running at once.
func (e *Engine) enrichWeather(ctx context.Context, dishes []models.Dish) (map[string]string, LookupStats, error) {
	type job struct {
		key string
		day time.Time
		loc models.Location
	}

	seen := make(map[string]struct{})
	var jobs []job
	for _, dish := range dishes {
		for _, sale := range dish.Sales {
			at := sale.Time.In(e.opts.Location)
			loc := e.saleLocation(sale)
			key := lookupKey(at, loc)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			jobs = append(jobs, job{
				key: key,
				day: time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, e.opts.Location),
				loc: loc,
			})
		}
	}

	results := make([]string, len(jobs))
	var (
		g    errgroup.Group
		done atomic.Int64
	)
	g.SetLimit(e.opts.MaxInFlight)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if j.loc.IsZero() {
				results[i] = weather.ConditionUnknown
			} else {
				results[i] = e.weather.Lookup(ctx, j.loc, j.day)
			}
			if e.opts.Progress != nil {
				e.opts.Progress(int(done.Add(1)), len(jobs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, LookupStats{}, err
	}

	if err := ctx.Err(); err != nil {
		return nil, LookupStats{}, fmt.Errorf("weather enrichment abandoned: %w", err)
	}

	stats := LookupStats{Keys: len(jobs)}
	conditions := make(map[string]string, len(jobs))
	for i, j := range jobs {
		c := results[i]
		if c == "" {
			c = weather.ConditionUnknown
		}
		switch c {
		case weather.ConditionUnknown:
			stats.Unknown++
		case weather.ConditionFetchFailed:
			stats.Failed++
		}
		conditions[j.key] = c
	}
	return conditions, stats, nil
}

func increment[K comparable](m map[K]map[string]int, key K, dish string) {
	byDish, ok := m[key]
	if !ok {
		byDish = make(map[string]int)
		m[key] = byDish
	}
	byDish[dish]++
}

// rank returns up to n dishes that have at least one sale, ordered by less.
// The sort is stable so ties keep input order.
func rank(dishes []DishStats, n int, less func(a, b DishStats) bool) []DishSummary {
	ranked := lo.Filter(dishes, func(d DishStats, _ int) bool { return d.TotalSales > 0 })
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return lo.Map(ranked, func(d DishStats, _ int) DishSummary { return d.summary() })
}
