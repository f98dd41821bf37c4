package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/congo-pay/edgewallet/internal/infra"
	"github.com/congo-pay/edgewallet/internal/migrations"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := migrations.Names()
			if err != nil {
				return err
			}
			if list {
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required to migrate")
			}
			pool, err := infra.NewPostgresPool(cmd.Context(), cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := migrations.ApplyPool(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(names))
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "print the migration names without applying them")

	return cmd
}
