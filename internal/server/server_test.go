package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/menu"
	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories/memory"
	"github.com/chrisdamba/menustats/internal/weather"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC)

type fixture struct {
	handler http.Handler
	dishes  *memory.DishRepository
}

func newFixture(t *testing.T, withRestaurant bool) fixture {
	t.Helper()
	ctx := context.Background()
	restaurants := memory.NewRestaurantRepository()
	dishes := memory.NewDishRepository()
	menus := memory.NewMenuRepository()

	if withRestaurant {
		require.NoError(t, restaurants.Put(ctx, &models.Restaurant{
			ID: "r1", Name: "Thai Palace", Location: models.Location{City: "Austin", State: "TX"},
		}))
	}
	require.NoError(t, dishes.BulkCreate(ctx, []*models.Dish{
		{ID: "d1", RestaurantID: "r1", Name: "Pad Thai", Price: decimal.RequireFromString("10")},
		{ID: "d2", RestaurantID: "r1", Name: "Curry", Price: decimal.RequireFromString("12"), Archived: true},
	}))

	ids := []string{"m1", "m2"}
	svc := menu.NewService(dishes, menus,
		menu.WithClock(func() time.Time { return now }),
		menu.WithIDGenerator(func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}),
	)

	opts := analytics.DefaultOptions()
	opts.Clock = func() time.Time { return now }
	opts.NewRunID = func() string { return "run-1" }
	lookup := analytics.WeatherLookupFunc(func(_ context.Context, loc models.Location, _ time.Time) string {
		if loc.City == "Austin" {
			return "Sunny"
		}
		return weather.ConditionUnknown
	})
	return fixture{handler: New(restaurants, dishes, svc, lookup, opts), dishes: dishes}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := newFixture(t, false).do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordSale(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", `{"time":"2025-05-09T19:30:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale models.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	require.True(t, sale.Price.Valid)
	require.True(t, decimal.NewFromInt(10).Equal(sale.Price.Decimal))

	rec = f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	require.Equal(t, now, sale.Time)

	stored, err := f.dishes.Get(context.Background(), "r1", "d1")
	require.NoError(t, err)
	require.Len(t, stored.Sales, 2)
}

func TestRecordSale_Errors(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/restaurants/r1/dishes/missing/sales", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/restaurants/r1/dishes/d2/sales", `{}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", `{"time":"yesterday"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveDish(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/restaurants/r1/dishes/d1/archive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.Dish
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.True(t, d.Archived)

	rec = f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestListDishes(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/restaurants/r1/dishes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dishes []models.Dish
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dishes))
	require.Len(t, dishes, 2)
	require.Equal(t, "Pad Thai", dishes[0].Name)

	rec = f.do(http.MethodGet, "/restaurants/nobody/dishes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestMenus(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/restaurants/r1/menus/live", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/restaurants/r1/menus", `{"name":"Lunch","dish_ids":["d1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/restaurants/r1/menus", `{"name":"Dinner","dish_ids":["d1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPut, "/restaurants/r1/menus/m1/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPut, "/restaurants/r1/menus/m2/live", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/restaurants/r1/menus/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var live models.Menu
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	require.Equal(t, "m2", live.ID)
	require.Equal(t, "Dinner", live.Name)

	rec = f.do(http.MethodPut, "/restaurants/r1/menus/m9/live", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMenu_Invalid(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/restaurants/r1/menus", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/restaurants/r1/menus", `{"name":"Lunch","dish_ids":["d2"]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/restaurants/r1/menus", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func analyticsReport(t *testing.T, rec *httptest.ResponseRecorder) analytics.Report {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report analytics.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return report
}

func TestAnalytics_UsesRestaurantLocation(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", `{"time":"2025-05-09T19:30:00Z"}`).Code)

	report := analyticsReport(t, f.do(http.MethodGet, "/restaurants/r1/analytics", ""))
	require.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Dishes, 2)
	require.Equal(t, 1, report.Weather["Sunny"]["Pad Thai"].Count)
	require.Equal(t, analytics.Evening, report.Dishes[0].Sales[0].Derived.TimeOfDay)

	report = analyticsReport(t, f.do(http.MethodGet, "/restaurants/r1/analytics?exclude_archived=true", ""))
	require.Len(t, report.Dishes, 1)
}

func TestAnalytics_NoRestaurant(t *testing.T) {
	f := newFixture(t, false)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/restaurants/r1/dishes/d1/sales", "").Code)

	report := analyticsReport(t, f.do(http.MethodGet, "/restaurants/r1/analytics?anova_mode=daily_counts", ""))
	require.Equal(t, 1, report.Weather[weather.ConditionUnknown]["Pad Thai"].Count)
}

func TestAnalytics_BadMode(t *testing.T) {
	rec := newFixture(t, true).do(http.MethodGet, "/restaurants/r1/analytics?anova_mode=fancy", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
