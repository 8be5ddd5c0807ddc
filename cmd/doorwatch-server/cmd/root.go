package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorwatch/internal/config"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/service/server"
	"github.com/oshokin/doorwatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides http_addr from the config.
	httpAddress string
	// grpcAddress overrides grpc_addr from the config.
	grpcAddress string

	// rootCmd represents the base command for running the door monitor.
	rootCmd = &cobra.Command{
		Use:   "doorwatch-server",
		Short: "Watch a door and alarm subscribers when it stays open too long.",
		Long: `Starts the door monitor.

Door sensors report "open" and "closed" over HTTP (/open, /closed), gRPC
(doorctl) or MQTT. When the door stays open longer than alarm_delay, every
subscribed browser receives a Web Push notification. Dashboards connected to
/refresher are told to refresh on every change.

Only one doorwatch-server may run per host.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			return server.Run(ctx, &server.Options{
				ConfigPath:  configPath,
				HTTPAddress: httpAddress,
				GRPCAddress: grpcAddress,
			})
		},
	}
)

// Execute runs the doorwatch-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&httpAddress, "http-addr", "", "HTTP listen address, overrides http_addr")
	rootCmd.Flags().StringVar(&grpcAddress, "grpc-addr", "", "gRPC listen address, overrides grpc_addr")
}
