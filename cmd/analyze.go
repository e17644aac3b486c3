package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/config"
	"github.com/chrisdamba/menustats/internal/output"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analytics pass and write the report to the configured sinks",
	Example: `  menustats analyze --input dishes.json --sinks console,json
  menustats analyze --source postgres --restaurant r1 --anova-mode daily_counts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAnalyze(ctx, cfg)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.String("source", config.SourceFile, "input source: file or postgres")
	f.String("input", "dishes.json", "path of the dishes JSON array for --source file")
	f.String("restaurant", "", "restaurant id for --source postgres")
	f.StringSlice("sinks", []string{"console"}, "report sinks: console, json, csv, parquet, kafka, amqp, postgres")
	f.String("timezone", "UTC", "IANA timezone sales are bucketed in")
	f.String("hemisphere", "northern", "season table: northern or southern")
	f.String("anova-mode", string(analytics.MonthlyTotals), "significance grouping: monthly_total or daily_counts")
	f.Bool("exclude-archived", false, "leave archived dishes out of the report")
	f.Bool("weather", false, "enrich sales with historical weather")

	for key, flag := range map[string]string{
		"input.source":               "source",
		"input.path":                 "input",
		"input.restaurant_id":        "restaurant",
		"output.sinks":               "sinks",
		"analytics.timezone":         "timezone",
		"analytics.hemisphere":       "hemisphere",
		"analytics.anova_mode":       "anova-mode",
		"analytics.exclude_archived": "exclude-archived",
		"weather.enabled":            "weather",
	} {
		cobra.CheckErr(v.BindPFlag(key, f.Lookup(flag)))
	}
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, cfg *config.Config) error {
	opts, err := analyticsOptions(cfg)
	if err != nil {
		return err
	}
	opts.Progress = progressBar("weather lookups")

	var report *analytics.Report
	switch cfg.Input.Source {
	case config.SourcePostgres:
		report, err = analyzeStored(ctx, cfg, opts)
	default:
		report, err = analyzeFile(ctx, cfg, opts)
	}
	if err != nil {
		return err
	}
	log.Infof("report %s: %d dishes, %d sales, %d weather keys (%d failed), %d issues",
		report.RunID, report.Summary.Dishes, report.Summary.TotalSales,
		report.WeatherLookups.Keys, report.WeatherLookups.Failed, len(report.Issues))

	sink, err := output.FromConfig(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	writeErr := sink.Write(ctx, report)
	return errors.Join(writeErr, sink.Close())
}

func analyzeFile(ctx context.Context, cfg *config.Config, opts analytics.Options) (*analytics.Report, error) {
	data, err := os.ReadFile(cfg.Input.Path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return analytics.NewEngine(weatherLookup(cfg), opts).RunJSON(ctx, data)
}

func analyzeStored(ctx context.Context, cfg *config.Config, opts analytics.Options) (*analytics.Report, error) {
	if cfg.Input.RestaurantID == "" {
		return nil, errors.New("input.restaurant_id is required for input.source=postgres")
	}
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.close()

	if opts.DefaultLocation.IsZero() {
		restaurant, err := st.restaurants.Get(ctx, cfg.Input.RestaurantID)
		switch {
		case err == nil:
			opts.DefaultLocation = restaurant.Location
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
	}

	dishes, err := st.dishes.Scan(ctx, cfg.Input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("load dishes: %w", err)
	}
	log.Infof("loaded %d dishes for restaurant %s", len(dishes), cfg.Input.RestaurantID)
	return analytics.NewEngine(weatherLookup(cfg), opts).Run(ctx, dishes)
}
