package cmd

import (
	"fmt"
	"os"

	"github.com/chrisdamba/menustats/internal/config"
	"github.com/chrisdamba/menustats/internal/logger"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

var log = logging.MustGetLogger("cmd")

var (
	cfgFile string
	v       = config.NewViper()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "menustats",
	Short: "Sales analytics for restaurant dishes",
	Long: `menustats enriches a restaurant's dish sales with time, calendar and weather
context and rolls them up into per-dish, monthly, seasonal and weather
aggregates, rankings and a month-to-month significance test.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if err := logger.Init(loaded.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		if used := v.ConfigFileUsed(); used != "" {
			log.Infof("using config file: %s", used)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is menustats.yaml in . or $HOME)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "DEBUG, INFO, WARNING, ERROR or CRITICAL")
	cobra.CheckErr(v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
