package cmd

import (
	"context"
	"os"
	"sync"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/config"
	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/chrisdamba/menustats/internal/repositories/memory"
	"github.com/chrisdamba/menustats/internal/repositories/postgres"
	"github.com/chrisdamba/menustats/internal/weather"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

func analyticsOptions(cfg *config.Config) (analytics.Options, error) {
	opts := analytics.DefaultOptions()

	loc, err := cfg.Location()
	if err != nil {
		return opts, err
	}
	seasons, err := analytics.SeasonPolicyFor(cfg.Analytics.Hemisphere)
	if err != nil {
		return opts, err
	}
	mode, err := analytics.ParseANOVAMode(cfg.Analytics.ANOVAMode)
	if err != nil {
		return opts, err
	}

	opts.Location = loc
	opts.Seasons = seasons
	opts.ANOVAMode = mode
	opts.CostRatio = decimal.NewNullDecimal(decimal.NewFromFloat(cfg.Analytics.CostRatio))
	opts.SignificanceThreshold = cfg.Analytics.SignificanceThreshold
	opts.TopN = cfg.Analytics.TopN
	opts.BottomN = cfg.Analytics.BottomN
	opts.ExcludeArchived = cfg.Analytics.ExcludeArchived
	opts.MaxInFlight = cfg.Weather.MaxInFlight
	opts.DefaultLocation = models.Location{City: cfg.Weather.DefaultCity, State: cfg.Weather.DefaultState}
	return opts, nil
}

// weatherLookup returns the HTTP backed service, or a lookup that always
// answers Unknown when weather enrichment is disabled.
func weatherLookup(cfg *config.Config) analytics.WeatherLookup {
	if !cfg.Weather.Enabled {
		log.Info("weather enrichment disabled")
		return weather.Static(weather.ConditionUnknown)
	}
	client := weather.NewHTTPClient(weather.ClientConfig{
		APIKey:            cfg.Weather.APIKey,
		GeocodeURL:        cfg.Weather.GeocodeURL,
		ConditionsURL:     cfg.Weather.ConditionsURL,
		GeocodeLatPath:    cfg.Weather.GeocodeLatPath,
		GeocodeLonPath:    cfg.Weather.GeocodeLonPath,
		ConditionCodePath: cfg.Weather.ConditionCodePath,
	})
	return weather.NewService(client, client, cfg.Weather.RequestTimeout)
}

type stores struct {
	restaurants repositories.RestaurantRepository
	dishes      repositories.DishRepository
	menus       repositories.MenuRepository
	close       func()
}

// openStores connects to Postgres when database.url is set and falls back
// to process-local memory otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warning("database.url not set, using in-memory store")
		return &stores{
			restaurants: memory.NewRestaurantRepository(),
			dishes:      memory.NewDishRepository(),
			menus:       memory.NewMenuRepository(),
			close:       func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		restaurants: postgres.NewRestaurantRepository(pool),
		dishes:      postgres.NewDishRepository(pool),
		menus:       postgres.NewMenuRepository(pool),
		close:       pool.Close,
	}, nil
}

// progressBar reports progress on stderr. The bar is created on the first
// call, once the total is known.
func progressBar(description string) func(done, total int) {
	var (
		once sync.Once
		bar  *progressbar.ProgressBar
	)
	return func(done, total int) {
		once.Do(func() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		})
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	}
}
