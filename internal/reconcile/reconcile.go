package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/congo-pay/edgewallet/internal/ledger"
	"github.com/congo-pay/edgewallet/internal/logging"
	"github.com/congo-pay/edgewallet/internal/metrics"
	"github.com/congo-pay/edgewallet/internal/notification"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// Wallet roles within an edge trio.
const (
	RoleSource      = "source"
	RoleDestination = "destination"
	RoleNFT         = "nft"
)

// WalletDrift compares the local and ledger volume of one wallet.
type WalletDrift struct {
	Role         string `json:"role"`
	WalletID     int64  `json:"-"`
	PublicKey    string `json:"public_key"`
	TokenID      string `json:"token_id"`
	LocalVolume  int64  `json:"local_volume"`
	LedgerVolume int64  `json:"ledger_volume"`
}

// InSync reports whether both sides agree.
func (d WalletDrift) InSync() bool {
	return d.LocalVolume == d.LedgerVolume
}

// Report is the outcome of reconciling one edge.
type Report struct {
	EdgeID   int64         `json:"edge_id"`
	Wallets  []WalletDrift `json:"wallets"`
	Repaired bool          `json:"repaired"`
}

// Drifted returns the wallets whose volumes disagree.
func (r Report) Drifted() []WalletDrift {
	var out []WalletDrift
	for _, w := range r.Wallets {
		if !w.InSync() {
			out = append(out, w)
		}
	}
	return out
}

// Reconciler compares the balance mirror with the ledger and can overwrite local
// volumes with ledger volumes. It is the repair path for transfers that committed
// on the ledger but failed locally.
type Reconciler struct {
	repo       wallet.Repository
	projection *wallet.Service
	ledger     ledger.Client
	notifier   notification.Notifier
	logger     *slog.Logger
	repair     bool
}

// New builds a Reconciler. With repair set, RunOnce repairs drifted edges.
func New(repo wallet.Repository, client ledger.Client, notifier notification.Notifier, logger *slog.Logger, repair bool) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		repo:       repo,
		projection: wallet.NewService(repo),
		ledger:     client,
		notifier:   notifier,
		logger:     logger,
		repair:     repair,
	}
}

// Check computes the drift of every wallet of the edge without writing anything.
func (r *Reconciler) Check(ctx context.Context, edgeID int64) (Report, error) {
	view, err := r.projection.GetEdgeWallet(ctx, edgeID)
	if err != nil {
		return Report{}, err
	}

	report := Report{EdgeID: edgeID}
	for _, w := range []struct {
		role string
		view wallet.WalletView
	}{
		{RoleSource, view.SourceWallet},
		{RoleDestination, view.DestinationWallet},
		{RoleNFT, view.NFTWallet},
	} {
		volume, err := LedgerVolume(ctx, r.ledger, w.view.PublicKey, w.view.TokenID)
		if err != nil {
			return Report{}, fmt.Errorf("%s wallet: %w", w.role, err)
		}
		report.Wallets = append(report.Wallets, WalletDrift{
			Role:         w.role,
			WalletID:     w.view.WalletID,
			PublicKey:    w.view.PublicKey,
			TokenID:      w.view.TokenID,
			LocalVolume:  w.view.Volume,
			LedgerVolume: volume,
		})
	}
	return report, nil
}

// Repair writes ledger volumes over drifted local volumes in one local transaction.
// Running it while a transfer on the same edge is in flight may undo that transfer's local write.
func (r *Reconciler) Repair(ctx context.Context, edgeID int64) (Report, error) {
	report, err := r.Check(ctx, edgeID)
	if err != nil {
		return Report{}, err
	}
	drifted := report.Drifted()
	if len(drifted) == 0 {
		return report, nil
	}

	err = r.repo.WithTx(ctx, func(q wallet.Querier) error {
		for _, d := range drifted {
			b, err := q.FindBalanceByWallet(ctx, d.WalletID)
			if err != nil {
				return err
			}
			b.Volume = d.LedgerVolume
			if err := q.UpdateBalance(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	report.Repaired = true
	r.logger.Info("mirror repaired", slog.Int64("edge_id", edgeID), slog.Int("wallets", len(drifted)))
	return report, nil
}

// RunOnce reconciles every known edge, repairing when configured. Failures on one
// edge do not stop the others; they are joined into the returned error.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	ids, err := r.repo.ListEdgeIDs(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := r.Check(ctx, id)
		if err != nil {
			r.logger.Warn("reconcile edge failed", slog.Int64("edge_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("edge %d: %w", id, err))
			continue
		}
		drifted := report.Drifted()
		if len(drifted) == 0 {
			continue
		}
		for _, d := range drifted {
			metrics.RecordDrift(d.Role)
			r.logger.Warn("mirror drift", slog.Int64("edge_id", id), slog.String("role", d.Role),
				slog.Int64("local_volume", d.LocalVolume), slog.Int64("ledger_volume", d.LedgerVolume))
		}
		if r.notifier != nil {
			_ = r.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindMirrorDrift,
				Destination: strconv.FormatInt(id, 10),
				Body:        fmt.Sprintf("%d wallet(s) out of line with the ledger", len(drifted)),
			})
		}
		if r.repair {
			if _, err := r.Repair(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("repair edge %d: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// LedgerVolume sums the unspent outputs owned by publicKey that carry assetID.
func LedgerVolume(ctx context.Context, client ledger.Client, publicKey, assetID string) (int64, error) {
	refs, err := client.ListUnspentOutputs(ctx, publicKey)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, ref := range refs {
		tx, err := client.GetTransaction(ctx, ref.TransactionID)
		if err != nil {
			return 0, err
		}
		if !tx.MatchesAsset(assetID) {
			continue
		}
		amount, err := tx.OutputAmount(ref.OutputIndex)
		if err != nil {
			return 0, err
		}
		total += amount
	}
	return total, nil
}
