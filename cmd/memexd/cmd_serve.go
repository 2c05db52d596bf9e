package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memexhq/memex/internal/api"
	"github.com/memexhq/memex/internal/engine"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `serve starts the REST façade over the memory engine and blocks until
SIGINT or SIGTERM, then drains in-flight requests before exiting.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("error loading config: %v", err)
		}
		if !cfg.RestAPI.Enabled {
			fatalf("rest_api.enabled is false in config; nothing to serve")
		}

		e, err := engine.New(cfg)
		if err != nil {
			fatalf("error opening engine: %v", err)
		}
		defer e.Close()

		server := api.NewServer(e, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := server.Start(ctx, shutdownTimeout); err != nil {
			fatalf("server error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
