package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/flockdesk/pkg/configuration"
	"github.com/iota-uz/flockdesk/pkg/logging"
)

// app is what every subcommand shares once the root command has loaded
// the configuration.
type app struct {
	conf    *configuration.Configuration
	cleanup []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func newRootCmd(a *app) *cobra.Command {
	var baseURL string
	var envFiles []string

	cmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Drive the member dashboard from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configuration.Load(envFiles...)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
			}
			if baseURL != "" {
				conf.Server.BaseURL = baseURL
			}
			a.conf = conf
			a.cleanup = append(a.cleanup, conf.Unload)

			if conf.OpenTelemetry.Enabled {
				a.cleanup = append(a.cleanup, logging.SetupTracing(
					cmd.Context(),
					conf.OpenTelemetry.ServiceName,
					conf.OpenTelemetry.TempoURL,
				))
				conf.Logger().Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Dashboard server origin (overrides DASHBOARD_BASE_URL)")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load")

	cmd.AddCommand(newViewCmd(a))
	cmd.AddCommand(newEditCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newBulkDeleteCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newReplayCmd(a))
	cmd.AddCommand(newStubCmd(a))
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
