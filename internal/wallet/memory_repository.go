package wallet

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type memoryRepository struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryRepository constructs an in-memory repository for tests and local development.
// Transactions are serialised and work on a copy that replaces the state on commit.
func NewMemoryRepository() Repository {
	return &memoryRepository{state: &memoryState{}}
}

func (r *memoryRepository) WithTx(_ context.Context, fn func(q Querier) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	work := r.state.clone()
	r.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = work
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) CreateWallet(ctx context.Context, publicKey, privateKey string) (w Wallet, err error) {
	err = r.WithTx(ctx, func(q Querier) error {
		w, err = q.CreateWallet(ctx, publicKey, privateKey)
		return err
	})
	return w, err
}

func (r *memoryRepository) CreateToken(ctx context.Context, assetID string) (t Token, err error) {
	err = r.WithTx(ctx, func(q Querier) error {
		t, err = q.CreateToken(ctx, assetID)
		return err
	})
	return t, err
}

func (r *memoryRepository) CreateBalance(ctx context.Context, balance Balance) error {
	return r.WithTx(ctx, func(q Querier) error {
		return q.CreateBalance(ctx, balance)
	})
}

func (r *memoryRepository) CreateEdgeLink(ctx context.Context, link EdgeLink) (l EdgeLink, err error) {
	err = r.WithTx(ctx, func(q Querier) error {
		l, err = q.CreateEdgeLink(ctx, link)
		return err
	})
	return l, err
}

func (r *memoryRepository) UpdateBalance(ctx context.Context, balance Balance) error {
	return r.WithTx(ctx, func(q Querier) error {
		return q.UpdateBalance(ctx, balance)
	})
}

func (r *memoryRepository) FindEdgeLink(ctx context.Context, edgeID int64) (EdgeLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.FindEdgeLink(ctx, edgeID)
}

func (r *memoryRepository) FindBalanceByWallet(ctx context.Context, walletID int64) (Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.FindBalanceByWallet(ctx, walletID)
}

func (r *memoryRepository) WalletView(ctx context.Context, walletID int64) (WalletView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.WalletView(ctx, walletID)
}

func (r *memoryRepository) ListEdgeIDs(ctx context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.ListEdgeIDs(ctx)
}

// memoryState mirrors the four tables. Rows keep insertion order, which stands
// in for primary key order.
type memoryState struct {
	wallets  []Wallet
	tokens   []Token
	balances []Balance
	links    []EdgeLink

	walletSeq int64
	tokenSeq  int64
	linkSeq   int64
}

func (s *memoryState) clone() *memoryState {
	c := *s
	c.wallets = slices.Clone(s.wallets)
	c.tokens = slices.Clone(s.tokens)
	c.balances = slices.Clone(s.balances)
	c.links = slices.Clone(s.links)
	return &c
}

func (s *memoryState) wallet(id int64) (Wallet, bool) {
	i := slices.IndexFunc(s.wallets, func(w Wallet) bool { return w.ID == id })
	if i < 0 {
		return Wallet{}, false
	}
	return s.wallets[i], true
}

func (s *memoryState) token(id int64) (Token, bool) {
	i := slices.IndexFunc(s.tokens, func(t Token) bool { return t.ID == id })
	if i < 0 {
		return Token{}, false
	}
	return s.tokens[i], true
}

func (s *memoryState) CreateWallet(_ context.Context, publicKey, privateKey string) (Wallet, error) {
	s.walletSeq++
	w := Wallet{ID: s.walletSeq, PublicKey: publicKey, PrivateKey: privateKey}
	s.wallets = append(s.wallets, w)
	return w, nil
}

func (s *memoryState) CreateToken(_ context.Context, assetID string) (Token, error) {
	s.tokenSeq++
	t := Token{ID: s.tokenSeq, Token: assetID}
	s.tokens = append(s.tokens, t)
	return t, nil
}

func (s *memoryState) CreateBalance(_ context.Context, balance Balance) error {
	if _, ok := s.wallet(balance.WalletID); !ok {
		return storeErr("create balance", fmt.Errorf("wallet %d does not exist", balance.WalletID))
	}
	if _, ok := s.token(balance.TokenID); !ok {
		return storeErr("create balance", fmt.Errorf("token %d does not exist", balance.TokenID))
	}
	if s.balanceIndex(balance.WalletID, balance.TokenID) >= 0 {
		return storeErr("create balance", fmt.Errorf("duplicate key (%d, %d)", balance.WalletID, balance.TokenID))
	}
	s.balances = append(s.balances, balance)
	return nil
}

func (s *memoryState) CreateEdgeLink(_ context.Context, link EdgeLink) (EdgeLink, error) {
	for _, id := range []int64{link.SourceWalletID, link.DestinationWalletID, link.NFTWalletID} {
		if _, ok := s.wallet(id); !ok {
			return EdgeLink{}, storeErr("create edge link", fmt.Errorf("wallet %d does not exist", id))
		}
	}
	for _, id := range []int64{link.TokenID, link.NFTTokenID} {
		if _, ok := s.token(id); !ok {
			return EdgeLink{}, storeErr("create edge link", fmt.Errorf("token %d does not exist", id))
		}
	}
	s.linkSeq++
	link.ID = s.linkSeq
	s.links = append(s.links, link)
	return link, nil
}

func (s *memoryState) FindEdgeLink(_ context.Context, edgeID int64) (EdgeLink, error) {
	for _, l := range s.links {
		if l.EdgeID == edgeID {
			return l, nil
		}
	}
	return EdgeLink{}, notFound("edge_id", edgeID)
}

func (s *memoryState) FindBalanceByWallet(_ context.Context, walletID int64) (Balance, error) {
	var (
		found Balance
		ok    bool
	)
	for _, b := range s.balances {
		if b.WalletID == walletID && (!ok || b.TokenID < found.TokenID) {
			found, ok = b, true
		}
	}
	if !ok {
		return Balance{}, notFound("wallet_id", walletID)
	}
	return found, nil
}

func (s *memoryState) balanceIndex(walletID, tokenID int64) int {
	return slices.IndexFunc(s.balances, func(b Balance) bool {
		return b.WalletID == walletID && b.TokenID == tokenID
	})
}

func (s *memoryState) UpdateBalance(_ context.Context, balance Balance) error {
	i := s.balanceIndex(balance.WalletID, balance.TokenID)
	if i < 0 {
		return notFound("wallet_id", balance.WalletID)
	}
	s.balances[i].Volume = balance.Volume
	return nil
}

func (s *memoryState) WalletView(ctx context.Context, walletID int64) (WalletView, error) {
	b, err := s.FindBalanceByWallet(ctx, walletID)
	if err != nil {
		return WalletView{}, err
	}
	w, ok := s.wallet(walletID)
	if !ok {
		return WalletView{}, notFound("wallet_id", walletID)
	}
	t, ok := s.token(b.TokenID)
	if !ok {
		return WalletView{}, notFound("wallet_id", walletID)
	}
	return WalletView{WalletID: w.ID, PublicKey: w.PublicKey, PrivateKey: w.PrivateKey, TokenID: t.Token, Volume: b.Volume}, nil
}

func (s *memoryState) ListEdgeIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.links))
	for _, l := range s.links {
		if !slices.Contains(ids, l.EdgeID) {
			ids = append(ids, l.EdgeID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
