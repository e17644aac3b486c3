package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisdamba/menustats/internal/menu"
	"github.com/chrisdamba/menustats/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sales recording, menus and on-demand analytics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts, err := analyticsOptions(cfg)
		if err != nil {
			return err
		}
		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		srv := server.New(st.restaurants, st.dishes, menu.NewService(st.dishes, st.menus), weatherLookup(cfg), opts)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	cobra.CheckErr(v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")))
	rootCmd.AddCommand(serveCmd)
}
