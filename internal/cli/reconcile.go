package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/congo-pay/edgewallet/internal/app"
	"github.com/congo-pay/edgewallet/internal/reconcile"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile [edge-id]",
		Short: "Compare local balances with the ledger",
		Long: `Compare the local volumes of an edge with the ledger. With --repair the
local volumes are overwritten with the ledger volumes.

Without an edge id every provisioned edge is checked once, honouring
RECONCILE_REPAIR.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.Reconciler.RunOnce(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "reconcile run complete")
					return nil
				})
			}

			edgeID, err := parseID("edge id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var report reconcile.Report
				if repair {
					report, err = a.Reconciler.Repair(ctx, edgeID)
				} else {
					report, err = a.Reconciler.Check(ctx, edgeID)
				}
				if err != nil {
					return err
				}
				return newFormatter(cmd, opts).Write(report, func(w io.Writer) { writeReport(w, report) })
			})
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "overwrite local volumes with ledger volumes")

	return cmd
}

func writeReport(w io.Writer, r reconcile.Report) {
	state := "in sync"
	if len(r.Drifted()) > 0 {
		state = "drifted"
	}
	if r.Repaired {
		state = "repaired"
	}
	fmt.Fprintf(w, "edge %d %s\n", r.EdgeID, state)
	for _, d := range r.Wallets {
		fmt.Fprintf(w, "  %-11s local=%d ledger=%d\n", d.Role, d.LocalVolume, d.LedgerVolume)
	}
}
