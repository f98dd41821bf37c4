package wallet

import (
	"context"
)

// Service answers read queries over the balance mirror.
type Service struct {
	repo Repository
}

// NewService builds a projection service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetEdgeWallet assembles the wallet trio of an edge with one query per role.
func (s *Service) GetEdgeWallet(ctx context.Context, edgeID int64) (EdgeWalletView, error) {
	link, err := s.repo.FindEdgeLink(ctx, edgeID)
	if err != nil {
		return EdgeWalletView{}, err
	}

	src, err := s.repo.WalletView(ctx, link.SourceWalletID)
	if err != nil {
		return EdgeWalletView{}, err
	}
	dst, err := s.repo.WalletView(ctx, link.DestinationWalletID)
	if err != nil {
		return EdgeWalletView{}, err
	}
	nft, err := s.repo.WalletView(ctx, link.NFTWalletID)
	if err != nil {
		return EdgeWalletView{}, err
	}

	return EdgeWalletView{
		EdgeID:            edgeID,
		SourceWallet:      src,
		DestinationWallet: dst,
		NFTWallet:         nft,
		TokenID:           src.TokenID,
		NFTTokenID:        nft.TokenID,
	}, nil
}

// GetWalletBalance returns the view of a single wallet.
func (s *Service) GetWalletBalance(ctx context.Context, walletID int64) (WalletView, error) {
	return s.repo.WalletView(ctx, walletID)
}
