package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/weather"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return fixedNow }
	opts.NewRunID = func() string { return "run-1" }
	return opts
}

func sale(ts string) models.Sale {
	at, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return models.Sale{Time: at}
}

func pricedSale(ts, price string) models.Sale {
	s := sale(ts)
	s.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	return s
}

func dish(name, price string, sales ...models.Sale) models.Dish {
	return models.Dish{Name: name, Price: decimal.RequireFromString(price), Sales: sales}
}

func TestEngine_SingleDish(t *testing.T) {
	engine := NewEngine(weather.Static("Sunny"), testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("Pad Thai", "10", sale("2025-03-01T12:00:00Z"), sale("2025-03-01T14:00:00Z")),
	})
	require.NoError(t, err)

	require.Equal(t, "run-1", report.RunID)
	require.Equal(t, fixedNow, report.GeneratedAt)
	require.Len(t, report.Dishes, 1)

	d := report.Dishes[0]
	require.Equal(t, 2, d.TotalSales)
	require.True(t, decimal.NewFromInt(20).Equal(d.TotalRevenue), d.TotalRevenue.String())
	require.True(t, decimal.NewFromInt(8).Equal(d.TotalProfit), d.TotalProfit.String())
	require.True(t, decimal.NewFromInt(10).Equal(d.AverageSalePrice))
	for _, s := range d.Sales {
		require.Equal(t, Afternoon, s.Derived.TimeOfDay)
		require.Equal(t, "March", s.Derived.Month)
		require.Equal(t, "Saturday", s.Derived.DayOfWeek)
		require.Equal(t, "Unknown", s.Derived.Weather)
	}

	require.Len(t, report.Monthly, 1)
	require.Equal(t, "2025-03", report.Monthly[0].Month)
	require.Equal(t, 2, report.Monthly[0].TotalSales)
	require.Equal(t, map[Season]map[string]int{Spring: {"Pad Thai": 2}}, report.Seasonal)
	require.Equal(t, map[TimeOfDay]map[string]int{Afternoon: {"Pad Thai": 2}}, report.TimeOfDay)
	require.Equal(t, StatusInsufficientData, report.Significance["Pad Thai"].Status)

	require.Equal(t, 1, report.Summary.Dishes)
	require.Equal(t, 2, report.Summary.TotalSales)
	require.Len(t, report.TopBySales, 1)
	require.Len(t, report.BottomBySales, 1)
}

func TestEngine_WeatherUsesSaleOrDefaultLocation(t *testing.T) {
	lookup := WeatherLookupFunc(func(_ context.Context, loc models.Location, _ time.Time) string {
		if loc.City == "Austin" {
			return "Sunny"
		}
		return "Overcast"
	})
	opts := testOptions()
	opts.DefaultLocation = models.Location{City: "Denver", State: "CO"}
	engine := NewEngine(lookup, opts)

	located := sale("2025-03-01T12:00:00Z")
	located.Location = &models.Location{City: "Austin", State: "TX"}
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("Tacos", "4", located, sale("2025-03-02T12:00:00Z")),
	})
	require.NoError(t, err)

	require.Equal(t, "Sunny", report.Dishes[0].Sales[0].Derived.Weather)
	require.Equal(t, "Overcast", report.Dishes[0].Sales[1].Derived.Weather)
	require.Equal(t, 1, report.Weather["Sunny"]["Tacos"].Count)
	require.True(t, decimal.NewFromInt(4).Equal(report.Weather["Overcast"]["Tacos"].Revenue))
	require.Equal(t, LookupStats{Keys: 2}, report.WeatherLookups)
}

func TestEngine_EmptyInput(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, report.Dishes)
	require.Empty(t, report.Monthly)
	require.Empty(t, report.TopBySales)
	require.True(t, report.Summary.TotalRevenue.IsZero())

	data, err := json.Marshal(report)
	require.NoError(t, err)
	require.Contains(t, string(data), `"dishes":[]`)
	require.Contains(t, string(data), `"monthly":[]`)
	require.Contains(t, string(data), `"top_by_sales":[]`)

	report, err = engine.RunJSON(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	require.Empty(t, report.Dishes)
}

func TestEngine_RunJSONRejectsNonArray(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	_, err := engine.RunJSON(context.Background(), []byte(`{"name":"Soup"}`))
	require.ErrorIs(t, err, models.ErrNotArray)

	_, err = engine.RunJSON(context.Background(), []byte(`[{"name":`))
	require.ErrorIs(t, err, models.ErrInvalidJSON)
}

func TestEngine_RunJSONCarriesIssues(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.RunJSON(context.Background(), []byte(`[
		{"name":"Ramen","price":"12.50","sales":[{"time":"2025-01-10T19:00:00Z"},{"time":"yesterday"}]},
		{"price":3}
	]`))
	require.NoError(t, err)
	require.Len(t, report.Dishes, 1)
	require.Equal(t, 1, report.Dishes[0].TotalSales)
	require.Equal(t, Evening, report.Dishes[0].Sales[0].Derived.TimeOfDay)
	require.Equal(t, map[Season]map[string]int{Winter: {"Ramen": 1}}, report.Seasonal)
	require.Len(t, report.Issues, 2)
}

func TestEngine_RevenueUsesSalePrice(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("Burger", "15",
			pricedSale("2025-02-01T12:00:00Z", "12"),
			pricedSale("2025-02-02T12:00:00Z", "13.50"),
			sale("2025-02-03T12:00:00Z"),
		),
	})
	require.NoError(t, err)
	d := report.Dishes[0]
	require.True(t, decimal.RequireFromString("40.5").Equal(d.TotalRevenue), d.TotalRevenue.String())
	require.True(t, decimal.RequireFromString("16.2").Equal(d.TotalProfit), d.TotalProfit.String())
	require.True(t, decimal.RequireFromString("13.5").Equal(d.AverageSalePrice))
	require.True(t, decimal.RequireFromString("12").Equal(d.Sales[0].Price))
}

func TestEngine_MonthlyIsSorted(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("A", "1", sale("2025-11-01T10:00:00Z"), sale("2024-12-31T10:00:00Z")),
		dish("B", "2", sale("2025-02-14T10:00:00Z"), sale("2025-11-20T10:00:00Z")),
	})
	require.NoError(t, err)

	var months []string
	for _, m := range report.Monthly {
		months = append(months, m.Month)
	}
	require.Equal(t, []string{"2024-12", "2025-02", "2025-11"}, months)
	require.Equal(t, 2, report.Monthly[2].TotalSales)
	require.True(t, decimal.NewFromInt(3).Equal(report.Monthly[2].TotalRevenue))
}

func TestEngine_SeasonsAcrossTheYear(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("Soup", "5",
			sale("2025-01-15T12:00:00Z"),
			sale("2025-04-15T12:00:00Z"),
			sale("2025-07-15T12:00:00Z"),
			sale("2025-10-15T12:00:00Z"),
			sale("2025-12-15T12:00:00Z"),
		),
	})
	require.NoError(t, err)
	require.Equal(t, map[Season]map[string]int{
		Winter: {"Soup": 2},
		Spring: {"Soup": 1},
		Summer: {"Soup": 1},
		Fall:   {"Soup": 1},
	}, report.Seasonal)

	opts := testOptions()
	opts.Seasons = SouthernHemisphere
	report, err = NewEngine(nil, opts).Run(context.Background(), []models.Dish{
		dish("Soup", "5", sale("2025-07-15T12:00:00Z")),
	})
	require.NoError(t, err)
	require.Equal(t, map[Season]map[string]int{Winter: {"Soup": 1}}, report.Seasonal)
}

func TestEngine_Rankings(t *testing.T) {
	var dishes []models.Dish
	for i := 0; i < 8; i++ {
		var sales []models.Sale
		for j := 0; j < i; j++ {
			sales = append(sales, sale(fmt.Sprintf("2025-05-%02dT12:00:00Z", j+1)))
		}
		dishes = append(dishes, dish(fmt.Sprintf("dish-%d", i), "3", sales...))
	}
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), dishes)
	require.NoError(t, err)

	require.Len(t, report.TopBySales, 5)
	require.Equal(t, "dish-7", report.TopBySales[0].Name)
	require.Equal(t, "dish-3", report.TopBySales[4].Name)
	require.Equal(t, "dish-7", report.TopByRevenue[0].Name)
	require.Equal(t, "dish-7", report.TopByProfit[0].Name)

	// dish-0 has no sales and is left out of both ends.
	require.Len(t, report.BottomBySales, 3)
	require.Equal(t, []string{"dish-1", "dish-2", "dish-3"}, []string{
		report.BottomBySales[0].Name, report.BottomBySales[1].Name, report.BottomBySales[2].Name,
	})
	require.Equal(t, 7, report.Summary.DishesWithSales)
	require.Equal(t, 8, report.Summary.Dishes)
}

func TestEngine_RankingFewerDishesThanN(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("Only", "1", sale("2025-05-01T12:00:00Z")),
		dish("Never", "1"),
	})
	require.NoError(t, err)
	require.Len(t, report.TopBySales, 1)
	require.Len(t, report.BottomBySales, 1)
	require.Equal(t, "Only", report.TopBySales[0].Name)
}

func TestEngine_RankingTiesKeepInputOrder(t *testing.T) {
	engine := NewEngine(nil, testOptions())
	report, err := engine.Run(context.Background(), []models.Dish{
		dish("First", "2", sale("2025-05-01T12:00:00Z")),
		dish("Second", "2", sale("2025-05-01T12:00:00Z")),
	})
	require.NoError(t, err)
	require.Equal(t, "First", report.TopBySales[0].Name)
	require.Equal(t, "Second", report.TopBySales[1].Name)
}

func TestEngine_ExcludeArchived(t *testing.T) {
	archived := dish("Old", "9", sale("2025-05-01T12:00:00Z"))
	archived.Archived = true
	dishes := []models.Dish{archived, dish("New", "9", sale("2025-05-01T12:00:00Z"))}

	report, err := NewEngine(nil, testOptions()).Run(context.Background(), dishes)
	require.NoError(t, err)
	require.Len(t, report.Dishes, 2)

	opts := testOptions()
	opts.ExcludeArchived = true
	report, err = NewEngine(nil, opts).Run(context.Background(), dishes)
	require.NoError(t, err)
	require.Len(t, report.Dishes, 1)
	require.Equal(t, "New", report.Dishes[0].Name)
}

func TestEngine_Idempotent(t *testing.T) {
	dishes := []models.Dish{
		dish("A", "7.25", sale("2025-01-01T08:00:00Z"), sale("2025-02-01T22:00:00Z")),
		dish("B", "3", sale("2025-03-01T18:00:00Z")),
		dish("C", "11"),
	}
	engine := NewEngine(weather.Static("Partly cloudy"), testOptions())

	first, err := engine.Run(context.Background(), dishes)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), dishes)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestEngine_OneFailedLookupDoesNotBlockOthers(t *testing.T) {
	lookup := WeatherLookupFunc(func(_ context.Context, loc models.Location, _ time.Time) string {
		if loc.City == "Down" {
			return weather.ConditionFetchFailed
		}
		return "Sunny"
	})
	down := sale("2025-03-01T12:00:00Z")
	down.Location = &models.Location{City: "Down"}
	up := sale("2025-03-01T12:00:00Z")
	up.Location = &models.Location{City: "Up"}

	report, err := NewEngine(lookup, testOptions()).Run(context.Background(), []models.Dish{
		dish("Pie", "6", down, up),
	})
	require.NoError(t, err)
	require.Equal(t, weather.ConditionFetchFailed, report.Dishes[0].Sales[0].Derived.Weather)
	require.Equal(t, "Sunny", report.Dishes[0].Sales[1].Derived.Weather)
	require.Equal(t, LookupStats{Keys: 2, Failed: 1}, report.WeatherLookups)
	require.Equal(t, 1, report.Weather[weather.ConditionFetchFailed]["Pie"].Count)
	require.Equal(t, 1, report.Weather["Sunny"]["Pie"].Count)
}

func TestEngine_BoundedConcurrencyAndDedup(t *testing.T) {
	var (
		inFlight, peak atomic.Int32
		mu             sync.Mutex
		calls          = map[string]int{}
	)
	lookup := WeatherLookupFunc(func(_ context.Context, loc models.Location, day time.Time) string {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		calls[DayKey(day)+"|"+loc.Key()]++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return "Clear"
	})

	var sales []models.Sale
	for day := 1; day <= 20; day++ {
		for _, hour := range []int{9, 13} {
			s := sale(fmt.Sprintf("2025-04-%02dT%02d:00:00Z", day, hour))
			s.Location = &models.Location{City: "Oslo"}
			sales = append(sales, s)
		}
	}

	var progress atomic.Int32
	opts := testOptions()
	opts.MaxInFlight = 3
	opts.Progress = func(done, total int) {
		progress.Add(1)
	}
	report, err := NewEngine(lookup, opts).Run(context.Background(), []models.Dish{dish("Waffle", "5", sales...)})
	require.NoError(t, err)

	require.LessOrEqual(t, peak.Load(), int32(3))
	require.Len(t, calls, 20)
	for key, n := range calls {
		require.Equal(t, 1, n, key)
	}
	require.Equal(t, int32(20), progress.Load())
	require.Equal(t, 20, report.WeatherLookups.Keys)
	require.Equal(t, 40, report.Weather["Clear"]["Waffle"].Count)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := WeatherLookupFunc(func(ctx context.Context, _ models.Location, _ time.Time) string {
		if ctx.Err() != nil {
			return weather.ConditionFetchFailed
		}
		return "Sunny"
	})
	s := sale("2025-03-01T12:00:00Z")
	s.Location = &models.Location{City: "Rome"}
	_, err := NewEngine(lookup, testOptions()).Run(ctx, []models.Dish{dish("Pasta", "9", s)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngine_TimezoneShiftsBuckets(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	opts := testOptions()
	opts.Location = tokyo

	report, err := NewEngine(nil, opts).Run(context.Background(), []models.Dish{
		dish("Onigiri", "2", sale("2025-02-28T22:30:00Z")),
	})
	require.NoError(t, err)
	d := report.Dishes[0].Sales[0].Derived
	require.Equal(t, Morning, d.TimeOfDay)
	require.Equal(t, "March", d.Month)
	require.Equal(t, "2025-03", report.Monthly[0].Month)
	require.Equal(t, map[Season]map[string]int{Spring: {"Onigiri": 1}}, report.Seasonal)
}

func TestEngine_SignificanceModes(t *testing.T) {
	var sales []models.Sale
	for day := 1; day <= 28; day++ {
		sales = append(sales, sale(fmt.Sprintf("2025-02-%02dT12:00:00Z", day)))
		if day%7 != 0 {
			sales = append(sales,
				sale(fmt.Sprintf("2025-03-%02dT12:00:00Z", day)),
				sale(fmt.Sprintf("2025-03-%02dT18:00:00Z", day)),
				sale(fmt.Sprintf("2025-03-%02dT19:00:00Z", day)),
			)
		}
	}
	dishes := []models.Dish{dish("Curry", "8", sales...)}

	report, err := NewEngine(nil, testOptions()).Run(context.Background(), dishes)
	require.NoError(t, err)
	require.Equal(t, StatusDegenerate, report.Significance["Curry"].Status)
	require.Equal(t, 2, report.Significance["Curry"].Months)

	opts := testOptions()
	opts.ANOVAMode = DailyCounts
	report, err = NewEngine(nil, opts).Run(context.Background(), dishes)
	require.NoError(t, err)
	sig := report.Significance["Curry"]
	require.Equal(t, StatusOK, sig.Status)
	require.NotNil(t, sig.PValue)
	require.Less(t, *sig.PValue, 0.05)
	require.True(t, sig.Significant)
}

func TestEngine_ZeroOptionsUseDefaultCostRatio(t *testing.T) {
	report, err := NewEngine(nil, Options{}).Run(context.Background(), []models.Dish{
		dish("Dish 1", "10", sale("2025-03-01T12:00:00Z"), sale("2025-03-01T14:00:00Z")),
	})
	require.NoError(t, err)
	d := report.Dishes[0]
	require.True(t, decimal.NewFromInt(20).Equal(d.TotalRevenue), d.TotalRevenue.String())
	require.True(t, decimal.NewFromInt(8).Equal(d.TotalProfit), d.TotalProfit.String())
}

func TestEngine_ExplicitZeroCostRatio(t *testing.T) {
	opts := testOptions()
	opts.CostRatio = decimal.NewNullDecimal(decimal.Zero)
	report, err := NewEngine(nil, opts).Run(context.Background(), []models.Dish{
		dish("Dish 1", "10", sale("2025-03-01T12:00:00Z"), sale("2025-03-01T14:00:00Z")),
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(20).Equal(report.Dishes[0].TotalProfit), report.Dishes[0].TotalProfit.String())
}

type geocodeDown struct{}

func (geocodeDown) Geocode(_ context.Context, loc models.Location) (mo.Option[models.Coordinates], error) {
	if loc.City == "Nowhere" {
		return mo.None[models.Coordinates](), errors.New("dial tcp: connection refused")
	}
	return mo.Some(models.Coordinates{Lat: 1, Lon: 2}), nil
}

func (geocodeDown) FetchCondition(context.Context, models.Coordinates, time.Time) (int, error) {
	return 1000, nil
}

func TestEngine_GeocodeFailureLandsInUnknown(t *testing.T) {
	svc := weather.NewService(geocodeDown{}, geocodeDown{}, time.Second)
	lost := sale("2025-03-01T12:00:00Z")
	lost.Location = &models.Location{City: "Nowhere", State: "ZZ"}
	found := sale("2025-03-01T13:00:00Z")
	found.Location = &models.Location{City: "Austin", State: "TX"}

	report, err := NewEngine(svc, testOptions()).Run(context.Background(), []models.Dish{
		dish("Pie", "6", lost, found),
		dish("Tart", "4", sale("2025-04-02T19:00:00Z")),
	})
	require.NoError(t, err)

	require.Equal(t, weather.ConditionUnknown, report.Dishes[0].Sales[0].Derived.Weather)
	require.Equal(t, "Sunny", report.Dishes[0].Sales[1].Derived.Weather)
	require.Equal(t, 1, report.Weather[weather.ConditionUnknown]["Pie"].Count)
	require.Equal(t, 1, report.Weather["Sunny"]["Pie"].Count)
	require.NotContains(t, report.Weather, weather.ConditionFetchFailed)
	require.Zero(t, report.WeatherLookups.Failed)

	require.Equal(t, 2, report.Dishes[0].TotalSales)
	require.Equal(t, 1, report.Dishes[1].TotalSales)
	require.Equal(t, 3, report.Summary.TotalSales)
	require.Len(t, report.Monthly, 2)
}
