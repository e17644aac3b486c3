package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chrisdamba/menustats/internal/config"
	"github.com/chrisdamba/menustats/internal/factories"
	"github.com/chrisdamba/menustats/internal/models"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate a synthetic restaurant with dishes and sales history",
	Long: `seed writes a generated dataset either as a dishes JSON array (the input
of "analyze --source file") or into Postgres when database.url is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if !cmd.Flags().Changed("out") && cfg.Input.Path != "" {
			out = cfg.Input.Path
		}
		return runSeed(cmd.Context(), cfg, out)
	},
}

func init() {
	f := seedCmd.Flags()
	f.Int64("seed", 42, "random seed")
	f.Int("dishes", 12, "number of dishes")
	f.Int("months", 6, "months of sales history")
	f.Float64("sales-per-day", 20, "average sales per ordinary day across all dishes")
	f.String("city", "Austin", "restaurant city")
	f.String("state", "TX", "restaurant state")
	f.String("restaurant", "", "restaurant id (generated when empty)")
	f.String("end-date", "", "last day of history, RFC 3339 (default today)")
	f.String("out", "dishes.json", "output file when not writing to Postgres (default input.path)")

	for key, flag := range map[string]string{
		"seed.seed":          "seed",
		"seed.dishes":        "dishes",
		"seed.months":        "months",
		"seed.sales_per_day": "sales-per-day",
		"seed.city":          "city",
		"seed.state":         "state",
		"seed.restaurant_id": "restaurant",
		"seed.end_date":      "end-date",
	} {
		cobra.CheckErr(v.BindPFlag(key, f.Lookup(flag)))
	}
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context, cfg *config.Config, out string) error {
	ds := factories.New(cfg.Seed.Seed).Generate(factories.DatasetConfig{
		RestaurantID: cfg.Seed.RestaurantID,
		City:         cfg.Seed.City,
		State:        cfg.Seed.State,
		Dishes:       cfg.Seed.Dishes,
		Months:       cfg.Seed.Months,
		SalesPerDay:  cfg.Seed.SalesPerDay,
		EndDate:      cfg.Seed.EndDate,
		Progress:     progressBar("generating dishes"),
	})
	sales := lo.SumBy(ds.Dishes, func(d *models.Dish) int { return len(d.Sales) })
	log.Infof("generated restaurant %s (%s) with %d dishes and %d sales",
		ds.Restaurant.ID, ds.Restaurant.Name, len(ds.Dishes), sales)

	if cfg.Database.URL == "" {
		return writeSeedFile(out, ds)
	}
	return storeSeed(ctx, cfg, ds)
}

func writeSeedFile(path string, ds factories.Dataset) error {
	data, err := json.MarshalIndent(ds.Dishes, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Infof("wrote %s", path)
	return nil
}

func storeSeed(ctx context.Context, cfg *config.Config, ds factories.Dataset) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.restaurants.Put(ctx, ds.Restaurant); err != nil {
		return fmt.Errorf("store restaurant: %w", err)
	}
	if err := st.dishes.DeleteAll(ctx, ds.Restaurant.ID); err != nil {
		return fmt.Errorf("clear dishes: %w", err)
	}
	if err := st.dishes.BulkCreate(ctx, ds.Dishes); err != nil {
		return fmt.Errorf("store dishes: %w", err)
	}
	for _, m := range ds.Menus {
		if err := st.menus.Put(ctx, m); err != nil {
			return fmt.Errorf("store menu %s: %w", m.Name, err)
		}
	}
	log.Infof("stored dataset for restaurant %s", ds.Restaurant.ID)
	return nil
}
