package provisioning

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

// Policy holds the issuance constants applied to every new edge.
type Policy struct {
	InitialSupply     int64
	InitialAllocation int64
	NFTSupply         int64
	Metadata          map[string]any
}

// DefaultPolicy issues 100 fungible units, all allocated to the source wallet, and one NFT.
func DefaultPolicy() Policy {
	return Policy{
		InitialSupply:     100,
		InitialAllocation: 100,
		NFTSupply:         1,
		Metadata:          map[string]any{"co": "devr"},
	}
}

func (p Policy) validate() error {
	switch {
	case p.InitialSupply < 1:
		return fmt.Errorf("initial supply must be positive")
	case p.InitialAllocation < 0:
		return fmt.Errorf("initial allocation must not be negative")
	case p.NFTSupply < 1:
		return fmt.Errorf("nft supply must be positive")
	}
	return nil
}

// nftAsset is the payload of every NFT CREATE.
var nftAsset = map[string]any{"token": "NFT"}

// Service creates the wallet trio of an edge and issues its tokens on the ledger.
type Service struct {
	repo       wallet.Repository
	projection *wallet.Service
	ledger     ledger.Client
	keys       KeySource
	notifier   notification.Notifier
	logger     *slog.Logger
	policy     Policy
}

// NewService builds a provisioning service. A nil keys falls back to Ed25519Keys.
func NewService(repo wallet.Repository, client ledger.Client, keys KeySource, notifier notification.Notifier, logger *slog.Logger, policy Policy) (*Service, error) {
	if repo == nil || client == nil {
		return nil, fmt.Errorf("repository and ledger client are required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = Ed25519Keys
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:       repo,
		projection: wallet.NewService(repo),
		ledger:     client,
		keys:       keys,
		notifier:   notifier,
		logger:     logger,
		policy:     policy,
	}, nil
}

// ProvisionInput names the edge and the fungible asset payload.
type ProvisionInput struct {
	EdgeID int64
	Asset  any
}

// Provision creates three wallets, a fungible token and an NFT for the edge, then
// returns the edge view. Local rows are written in one transaction that stays open
// across both ledger CREATEs. If it rolls back, assets already committed on the ledger
// are left orphaned. Calling Provision twice for an edge creates a second trio.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (wallet.EdgeWalletView, error) {
	if input.EdgeID <= 0 {
		return wallet.EdgeWalletView{}, fmt.Errorf("edge id must be positive")
	}
	logger := s.logger.With(slog.Int64("edge_id", input.EdgeID))

	var committed []string
	err := s.repo.WithTx(ctx, func(q wallet.Querier) error {
		src, err := s.createWallet(ctx, q)
		if err != nil {
			return err
		}
		dst, err := s.createWallet(ctx, q)
		if err != nil {
			return err
		}
		nft, err := s.createWallet(ctx, q)
		if err != nil {
			return err
		}

		ftAsset, err := s.issue(ctx, src, input.Asset, s.policy.InitialSupply)
		if err != nil {
			return fmt.Errorf("create FT: %w", err)
		}
		committed = append(committed, ftAsset)
		ft, err := q.CreateToken(ctx, ftAsset)
		if err != nil {
			return err
		}

		nftAssetID, err := s.issue(ctx, nft, nftAsset, s.policy.NFTSupply)
		if err != nil {
			return fmt.Errorf("create NFT: %w", err)
		}
		committed = append(committed, nftAssetID)
		nt, err := q.CreateToken(ctx, nftAssetID)
		if err != nil {
			return err
		}

		for _, b := range []wallet.Balance{
			{WalletID: src.ID, TokenID: ft.ID, Volume: s.policy.InitialAllocation},
			{WalletID: dst.ID, TokenID: ft.ID, Volume: 0},
			{WalletID: nft.ID, TokenID: nt.ID, Volume: s.policy.NFTSupply},
		} {
			if err := q.CreateBalance(ctx, b); err != nil {
				return err
			}
		}

		_, err = q.CreateEdgeLink(ctx, wallet.EdgeLink{
			EdgeID:              input.EdgeID,
			SourceWalletID:      src.ID,
			DestinationWalletID: dst.ID,
			NFTWalletID:         nft.ID,
			TokenID:             ft.ID,
			NFTTokenID:          nt.ID,
		})
		return err
	})
	if err != nil {
		if len(committed) > 0 {
			logger.Warn("ledger assets orphaned by failed provisioning", slog.Any("asset_ids", committed), slog.Any("error", err))
			metrics.RecordOrphanedAssets(len(committed))
		}
		metrics.RecordProvision(outcome(err))
		return wallet.EdgeWalletView{}, err
	}
	metrics.RecordProvision("ok")

	view, err := s.projection.GetEdgeWallet(ctx, input.EdgeID)
	if err != nil {
		return wallet.EdgeWalletView{}, err
	}
	logger.Info("edge provisioned", slog.String("token_id", view.TokenID), slog.String("nft_token_id", view.NFTTokenID))

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindWalletProvisioned,
			Destination: strconv.FormatInt(input.EdgeID, 10),
			Body:        fmt.Sprintf("token %s, nft %s", view.TokenID, view.NFTTokenID),
		})
	}
	return view, nil
}

func (s *Service) createWallet(ctx context.Context, q wallet.Querier) (wallet.Wallet, error) {
	kp, err := s.keys.NewKeypair()
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("generate keypair: %w", err)
	}
	return q.CreateWallet(ctx, kp.PublicKey, kp.PrivateKey)
}

// issue commits a CREATE of supply units to signer and returns the new asset id.
func (s *Service) issue(ctx context.Context, signer wallet.Wallet, asset any, supply int64) (string, error) {
	cond, err := ledger.MakeEd25519Condition(signer.PublicKey, true)
	if err != nil {
		return "", err
	}
	tx := ledger.MakeCreateTransaction(
		asset,
		s.policy.Metadata,
		[]ledger.Output{ledger.MakeOutput(cond, strconv.FormatInt(supply, 10))},
		[]string{signer.PublicKey},
	)
	signed, err := ledger.SignTransaction(tx, []string{signer.PrivateKey})
	if err != nil {
		return "", err
	}
	committed, err := s.ledger.PostTransactionCommit(ctx, signed)
	if err != nil {
		return "", err
	}
	return committed.TxID(), nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ledger.ErrSubmission):
		return "ledger_error"
	case errors.Is(err, wallet.ErrStore):
		return "store_error"
	default:
		return "error"
	}
}
