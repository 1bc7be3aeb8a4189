/*
main.go - Application entry point

PURPOSE:
  Builds the procurement-engine command line. The serve command wires the
  stores, the purchasing simulator, the notification fan-out and the HTTP
  API together and runs them until interrupted.

COMMANDS:
  serve        Run the HTTP API and live notification hub
  check-seed   Parse and validate a seed file without starting anything

STARTUP SEQUENCE (serve):
  1. Load configuration (.env, optional YAML file, PROCUREMENT_* env)
  2. Configure slog
  3. Open storage (sqlite or memory) and apply the seed
  4. Start the WebSocket hub and connect Redis when configured
  5. Build the engine and the HTTP router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Cancel pending purchasing stages
  4. Wait for in-flight procurement to finish
  5. Close Redis and database connections

EXAMPLES:
  procurement serve
  procurement serve --config ./procurement.yaml --port 3000
  PROCUREMENT_STORAGE=memory procurement serve
  procurement check-seed ./data/seed.yaml

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/procurement-engine/factory"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the procurement CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "procurement",
		Short: "Purchase request lifecycle engine",
		Long:  "Tracks warehouse purchase requests from draft through review, stock checks and purchasing.",
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckSeedCommand())

	return cmd
}

// NewCheckSeedCommand validates a seed file with the same rules serve uses.
func NewCheckSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "check-seed [path]",
		Short:         "Validate a seed file (embedded default when no path is given)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			seed, err := factory.Load(path)
			if err != nil {
				return err
			}
			if _, err := seed.ToRequests(timeNow()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed ok: %d warehouses, %d products, %d requests\n",
				len(seed.Warehouses), len(seed.Products), len(seed.Requests))
			return nil
		},
	}
}
