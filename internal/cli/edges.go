package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/congo-pay/edgewallet/internal/app"
	"github.com/congo-pay/edgewallet/internal/provisioning"
	"github.com/congo-pay/edgewallet/internal/transfer"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

func redact(a *app.App, v wallet.EdgeWalletView) wallet.EdgeWalletView {
	if a.Config.RedactPrivateKeys {
		return v.Redacted()
	}
	return v
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(opts *RootOptions) *cobra.Command {
	var asset, assetFile string

	cmd := &cobra.Command{
		Use:   "provision <edge-id>",
		Short: "Create the wallet trio of an edge and issue its tokens",
		Long: `Create the source, destination and NFT wallets of an edge, issue the
fungible asset and the NFT on the ledger and record the initial balances.

Example:
  edgectl provision 7 --asset '{"name":"edge-7"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edgeID, err := parseID("edge id", args[0])
			if err != nil {
				return err
			}
			body := []byte(asset)
			if assetFile != "" {
				if body, err = os.ReadFile(assetFile); err != nil {
					return fmt.Errorf("read asset file: %w", err)
				}
			}
			payload, err := provisioning.DecodeAsset(body)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Provisioning.Provision(ctx, provisioning.ProvisionInput{EdgeID: edgeID, Asset: payload})
				if err != nil {
					return err
				}
				view = redact(a, view)
				return newFormatter(cmd, opts).Write(view, func(w io.Writer) { writeEdge(w, view) })
			})
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "fungible asset payload as JSON")
	cmd.Flags().StringVar(&assetFile, "asset-file", "", "read the asset payload from a file")
	cmd.MarkFlagsMutuallyExclusive("asset", "asset-file")

	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <edge-id>",
		Short: "Move one transfer amount from the source to the destination wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edgeID, err := parseID("edge id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Transfers.Transfer(ctx, edgeID)
				if err != nil {
					var partial *transfer.PartialApplyError
					if errors.As(err, &partial) {
						return fmt.Errorf("%w (run: edgectl reconcile %d --repair)", err, partial.EdgeID)
					}
					return err
				}
				view = redact(a, view)
				return newFormatter(cmd, opts).Write(view, func(w io.Writer) { writeEdge(w, view) })
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <edge-id>",
		Short: "Print the wallets and balances of an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edgeID, err := parseID("edge id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Wallets.GetEdgeWallet(ctx, edgeID)
				if err != nil {
					return err
				}
				view = redact(a, view)
				return newFormatter(cmd, opts).Write(view, func(w io.Writer) { writeEdge(w, view) })
			})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <wallet-id>",
		Short: "Print the tracked balance of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			walletID, err := parseID("wallet id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Wallets.GetWalletBalance(ctx, walletID)
				if err != nil {
					return err
				}
				if a.Config.RedactPrivateKeys {
					view.PrivateKey = ""
				}
				return newFormatter(cmd, opts).Write(view, func(w io.Writer) { writeWallet(w, view) })
			})
		},
	}
}
