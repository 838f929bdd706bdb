package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marketpulse/deepsignal/config"
	srv "github.com/marketpulse/deepsignal/internal/server"
	"github.com/marketpulse/deepsignal/internal/signal"
)

// analyzeCMD runs a single event through the graph and prints the signal,
// without the HTTP server. Input is an AnalyzeRequest JSON document.
func analyzeCMD() *cobra.Command {
	var cfgPath string
	var inputPath string
	var analyze = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one event from a JSON file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if inputPath != "" {
				f, err := os.Open(inputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var req srv.AnalyzeRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decoding event input: %w", err)
			}
			if req.Event.Text == "" && req.Event.Translated == "" {
				return fmt.Errorf("event text required")
			}

			graph, err := srv.BuildGraph(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			final, err := graph.Run(ctx, req.Event, req.Preliminary)
			if err != nil {
				if signal.IsConfiguration(err) {
					return fmt.Errorf("planner backend unusable: %w", err)
				}
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(final)
		},
	}
	analyze.Flags().StringVarP(&inputPath, "input", "i", "", "event JSON file (default stdin)")
	analyze.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file directory (default is .)")
	return analyze
}
