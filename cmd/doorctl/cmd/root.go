package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorwatch/internal/config"
	"github.com/oshokin/doorwatch/internal/service/client"
	"github.com/oshokin/doorwatch/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides grpc_addr from the config.
	serverAddress string
	// retry keeps sending state changes until the server accepts them.
	retry bool

	// rootCmd is the doorctl entry point; it only groups subcommands.
	rootCmd = &cobra.Command{
		Use:   "doorctl",
		Short: "Control and inspect doorwatch-server.",
		Long: `Reports door state changes to doorwatch-server and queries its status over gRPC.

The server address and shared secret are read from the configuration file.
Results are printed as JSON.`,
		SilenceUsage: true,
	}
)

// newActionCommand builds a subcommand that runs one doorctl action.
func newActionCommand(action client.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Action:        action,
				Retry:         retry,
				Output:        cmd.OutOrStdout(),
			})
		},
	}
}

// Execute runs the doorctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "server gRPC address, overrides grpc_addr")

	openCmd := newActionCommand(client.ActionOpen, "Report the door as open.")
	closedCmd := newActionCommand(client.ActionClosed, "Report the door as closed.")

	for _, c := range []*cobra.Command{openCmd, closedCmd} {
		c.Flags().BoolVarP(&retry, "retry", "r", false, "retry until the server accepts the change")
	}

	rootCmd.AddCommand(
		openCmd,
		closedCmd,
		newActionCommand(client.ActionStatus, "Print the current door status."),
		newActionCommand(client.ActionHistory, "Print the recent door events."),
		&cobra.Command{
			Use:   "vapid-keys",
			Short: "Generate a VAPID key pair for the push section of the config.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return client.GenerateVAPIDKeys(cmd.OutOrStdout())
			},
		},
	)
}
