package analytics

import (
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/shopspring/decimal"
)

type Report struct {
	RunID          string                             `json:"run_id"`
	GeneratedAt    time.Time                          `json:"generated_at"`
	Summary        Summary                            `json:"summary"`
	Dishes         []DishStats                        `json:"dishes"`
	Monthly        []MonthlyAggregate                 `json:"monthly"`
	Seasonal       map[Season]map[string]int          `json:"seasonal"`
	Weather        map[string]map[string]WeatherStats `json:"weather"`
	TimeOfDay      map[TimeOfDay]map[string]int       `json:"time_of_day"`
	DayOfWeek      map[string]map[string]int          `json:"day_of_week"`
	Significance   map[string]Significance            `json:"significance"`
	TopBySales     []DishSummary                      `json:"top_by_sales"`
	TopByRevenue   []DishSummary                      `json:"top_by_revenue"`
	TopByProfit    []DishSummary                      `json:"top_by_profit"`
	BottomBySales  []DishSummary                      `json:"bottom_by_sales"`
	WeatherLookups LookupStats                        `json:"weather_lookups"`
	Issues         []models.Issue                     `json:"issues"`
}

type Summary struct {
	Dishes            int             `json:"dishes"`
	DishesWithSales   int             `json:"dishes_with_sales"`
	TotalSales        int             `json:"total_sales"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type DishStats struct {
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Ingredients      []string        `json:"ingredients"`
	Archived         bool            `json:"archived"`
	TotalSales       int             `json:"total_sales"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AverageSalePrice decimal.Decimal `json:"average_sale_price"`
	Sales            []EnrichedSale  `json:"sales"`
}

type EnrichedSale struct {
	Time     time.Time        `json:"time"`
	Price    decimal.Decimal  `json:"price"`
	Location *models.Location `json:"location,omitempty"`
	Derived  Derived          `json:"derived"`
}

type MonthlyAggregate struct {
	Month        string          `json:"month"`
	TotalSales   int             `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type WeatherStats struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type DishSummary struct {
	Name         string          `json:"name"`
	TotalSales   int             `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
}

// LookupStats describes the weather enrichment of one pass.
type LookupStats struct {
	Keys    int `json:"keys"`
	Unknown int `json:"unknown"`
	Failed  int `json:"failed"`
}

func (d DishStats) summary() DishSummary {
	return DishSummary{
		Name:         d.Name,
		TotalSales:   d.TotalSales,
		TotalRevenue: d.TotalRevenue,
		TotalProfit:  d.TotalProfit,
	}
}

func newReport() *Report {
	return &Report{
		Dishes:        []DishStats{},
		Monthly:       []MonthlyAggregate{},
		Seasonal:      make(map[Season]map[string]int),
		Weather:       make(map[string]map[string]WeatherStats),
		TimeOfDay:     make(map[TimeOfDay]map[string]int),
		DayOfWeek:     make(map[string]map[string]int),
		Significance:  make(map[string]Significance),
		TopBySales:    []DishSummary{},
		TopByRevenue:  []DishSummary{},
		TopByProfit:   []DishSummary{},
		BottomBySales: []DishSummary{},
		Issues:        []models.Issue{},
		Summary: Summary{
			TotalRevenue:      decimal.Zero,
			TotalProfit:       decimal.Zero,
			AverageOrderValue: decimal.Zero,
		},
	}
}
