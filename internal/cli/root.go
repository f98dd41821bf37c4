// Package cli implements the edgectl operator command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/congo-pay/edgewallet/internal/app"
	"github.com/congo-pay/edgewallet/internal/config"
	"github.com/congo-pay/edgewallet/internal/logging"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// AppFactory builds the services a command runs against.
type AppFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error)

// RootOptions holds global flags and the wiring shared by all commands.
type RootOptions struct {
	Format   string
	EnvFile  string
	LogLevel string

	NewApp     AppFactory
	LoadConfig func() (config.Config, error)
}

// NewRootCommand creates the edgectl root command backed by the configured stores.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{
		NewApp: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
			return app.Build(ctx, cfg, logger, app.Options{SkipCache: true})
		},
		LoadConfig: config.Load,
	})
}

// NewRootCommandWith creates the root command around opts. Tests swap the factories.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edgectl",
		Short: "Operate edge wallets mirrored from the ledger",
		Long: `edgectl provisions edge wallets, moves tokens along edges and
reconciles the local balance mirror with the ledger.

Configuration is read from the environment, or from --env-file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.EnvFile != "" {
				return os.Setenv("ENV_FILE", opts.EnvFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load before the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// withApp loads configuration, builds the services and runs fn against them.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.NewApp(ctx, cfg, o.logger(cmd))
	if err != nil {
		return err
	}
	defer a.Close() // nolint:errcheck
	return fn(ctx, a)
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(o.LogLevel)); err != nil {
		lvl.Set(slog.LevelWarn)
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), lvl.Level())
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
