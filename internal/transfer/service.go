package transfer

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

var (
	// ErrNoSpendableOutput means the source key owns no unspent output of the edge token.
	ErrNoSpendableOutput = errors.New("no spendable output")

	// ErrPartiallyApplied means the ledger committed the transfer but the local balances were not updated.
	ErrPartiallyApplied = errors.New("transfer committed on ledger but not applied locally")
)

// PartialApplyError carries what is needed to repair the mirror after a partial apply.
type PartialApplyError struct {
	EdgeID     int64
	LedgerTxID string
	Err        error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("edge %d: ledger tx %s: %v: %v", e.EdgeID, e.LedgerTxID, ErrPartiallyApplied, e.Err)
}

func (e *PartialApplyError) Unwrap() []error {
	return []error{ErrPartiallyApplied, e.Err}
}

// Policy holds the transfer constants.
type Policy struct {
	Amount int64
}

// DefaultPolicy moves one unit per transfer.
func DefaultPolicy() Policy {
	return Policy{Amount: 1}
}

// Service moves units of an edge token from its source wallet to its destination wallet.
type Service struct {
	repo       wallet.Repository
	projection *wallet.Service
	ledger     ledger.Client
	notifier   notification.Notifier
	logger     *slog.Logger
	policy     Policy
}

// NewService constructs a transfer service.
func NewService(repo wallet.Repository, client ledger.Client, notifier notification.Notifier, logger *slog.Logger, policy Policy) (*Service, error) {
	if repo == nil || client == nil {
		return nil, fmt.Errorf("repository and ledger client are required")
	}
	if policy.Amount < 1 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:       repo,
		projection: wallet.NewService(repo),
		ledger:     client,
		notifier:   notifier,
		logger:     logger,
		policy:     policy,
	}, nil
}

// Transfer submits one transfer of Policy.Amount on the ledger and, once it is
// committed, mirrors it locally. The source balance is only decremented when it
// holds at least the amount; the destination is always incremented.
func (s *Service) Transfer(ctx context.Context, edgeID int64) (wallet.EdgeWalletView, error) {
	view, err := s.projection.GetEdgeWallet(ctx, edgeID)
	if err != nil {
		metrics.RecordTransfer("not_found")
		return wallet.EdgeWalletView{}, err
	}
	logger := s.logger.With(slog.Int64("edge_id", edgeID))

	txID, err := s.submit(ctx, view)
	if err != nil {
		metrics.RecordTransfer(outcome(err))
		return wallet.EdgeWalletView{}, err
	}

	if err := s.apply(ctx, view); err != nil {
		logger.Error("ledger transfer committed but local balances not updated",
			slog.String("ledger_tx_id", txID), slog.Any("error", err))
		metrics.RecordTransfer("partially_applied")
		return wallet.EdgeWalletView{}, &PartialApplyError{EdgeID: edgeID, LedgerTxID: txID, Err: err}
	}
	metrics.RecordTransfer("ok")

	updated, err := s.projection.GetEdgeWallet(ctx, edgeID)
	if err != nil {
		return wallet.EdgeWalletView{}, err
	}
	logger.Info("token transferred", slog.String("ledger_tx_id", txID), slog.Int64("amount", s.policy.Amount))

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTokenTransferred,
			Destination: view.DestinationWallet.PublicKey,
			Body:        fmt.Sprintf("received %d of %s in %s", s.policy.Amount, view.TokenID, txID),
		})
	}
	return updated, nil
}

// FindSpendable returns the first unspent output of publicKey that carries assetID.
func FindSpendable(ctx context.Context, client ledger.Client, publicKey, assetID string) (ledger.UnspentOutput, error) {
	refs, err := client.ListUnspentOutputs(ctx, publicKey)
	if err != nil {
		return ledger.UnspentOutput{}, err
	}
	for _, ref := range refs {
		tx, err := client.GetTransaction(ctx, ref.TransactionID)
		if err != nil {
			return ledger.UnspentOutput{}, err
		}
		if tx.MatchesAsset(assetID) {
			return ledger.UnspentOutput{Tx: tx, OutputIndex: ref.OutputIndex}, nil
		}
	}
	return ledger.UnspentOutput{}, fmt.Errorf("%w: asset %s for key %s", ErrNoSpendableOutput, assetID, publicKey)
}

func (s *Service) submit(ctx context.Context, view wallet.EdgeWalletView) (string, error) {
	src, dst := view.SourceWallet, view.DestinationWallet

	spendable, err := FindSpendable(ctx, s.ledger, src.PublicKey, view.TokenID)
	if err != nil {
		return "", err
	}
	total, err := spendable.Tx.OutputAmount(spendable.OutputIndex)
	if err != nil {
		return "", err
	}

	// An output smaller than the amount yields no change output and an unbalanced
	// transaction, which the ledger rejects.
	var outputs []ledger.Output
	for _, o := range []struct {
		amount int64
		owner  string
	}{
		{total - s.policy.Amount, src.PublicKey},
		{s.policy.Amount, dst.PublicKey},
	} {
		if o.amount <= 0 {
			continue
		}
		cond, err := ledger.MakeEd25519Condition(o.owner, true)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, ledger.MakeOutput(cond, strconv.FormatInt(o.amount, 10)))
	}

	tx, err := ledger.MakeTransferTransaction([]ledger.UnspentOutput{spendable}, outputs, map[string]any{
		"transfer_to":     dst.PublicKey,
		"transfer_amount": s.policy.Amount,
	})
	if err != nil {
		return "", err
	}
	signed, err := ledger.SignTransaction(tx, []string{src.PrivateKey})
	if err != nil {
		return "", err
	}
	committed, err := s.ledger.PostTransactionCommit(ctx, signed)
	if err != nil {
		return "", err
	}
	return committed.TxID(), nil
}

func (s *Service) apply(ctx context.Context, view wallet.EdgeWalletView) error {
	amount := s.policy.Amount
	return s.repo.WithTx(ctx, func(q wallet.Querier) error {
		src, err := q.FindBalanceByWallet(ctx, view.SourceWallet.WalletID)
		if err != nil {
			return err
		}
		if src.Volume >= amount {
			src.Volume -= amount
			if err := q.UpdateBalance(ctx, src); err != nil {
				return err
			}
		}

		dst, err := q.FindBalanceByWallet(ctx, view.DestinationWallet.WalletID)
		if err != nil {
			return err
		}
		dst.Volume += amount
		return q.UpdateBalance(ctx, dst)
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNoSpendableOutput):
		return "no_spendable_output"
	case errors.Is(err, ledger.ErrSubmission):
		return "ledger_rejected"
	default:
		return "error"
	}
}
