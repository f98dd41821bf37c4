package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/congo-pay/edgewallet/internal/wallet"
)

// OutputFormatter renders command results as JSON or text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// Write prints v as indented JSON, or through text in text mode.
func (f *OutputFormatter) Write(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.Writer)
	return nil
}

func writeEdge(w io.Writer, v wallet.EdgeWalletView) {
	fmt.Fprintf(w, "edge %d\n", v.EdgeID)
	fmt.Fprintf(w, "  token      %s\n", v.TokenID)
	fmt.Fprintf(w, "  nft token  %s\n", v.NFTTokenID)
	for _, row := range []struct {
		role string
		view wallet.WalletView
	}{
		{"source", v.SourceWallet},
		{"destination", v.DestinationWallet},
		{"nft", v.NFTWallet},
	} {
		fmt.Fprintf(w, "  %-11s %s volume=%d\n", row.role, row.view.PublicKey, row.view.Volume)
	}
}

func writeWallet(w io.Writer, v wallet.WalletView) {
	fmt.Fprintf(w, "wallet %s\n  token   %s\n  volume  %d\n", v.PublicKey, v.TokenID, v.Volume)
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
