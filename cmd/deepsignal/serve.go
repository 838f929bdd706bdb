package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marketpulse/deepsignal/config"
	srv "github.com/marketpulse/deepsignal/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var addr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			graph, st, err := srv.Assemble(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			return srv.New(cfg, graph, st).Run(cfg.Server.Address)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file directory (default is .)")
	return serve
}
