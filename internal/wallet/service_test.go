package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func seedEdge(t *testing.T, repo Repository, edgeID int64, srcVolume int64) EdgeLink {
	t.Helper()
	var link EdgeLink
	err := repo.WithTx(context.Background(), func(q Querier) error {
		ctx := context.Background()
		src, _ := q.CreateWallet(ctx, "src-pk", "src-sk")
		dst, _ := q.CreateWallet(ctx, "dst-pk", "dst-sk")
		nft, _ := q.CreateWallet(ctx, "nft-pk", "nft-sk")
		ft, _ := q.CreateToken(ctx, "ft-asset")
		nt, _ := q.CreateToken(ctx, "nft-asset")
		for _, b := range []Balance{
			{WalletID: src.ID, TokenID: ft.ID, Volume: srcVolume},
			{WalletID: dst.ID, TokenID: ft.ID, Volume: 0},
			{WalletID: nft.ID, TokenID: nt.ID, Volume: 1},
		} {
			if err := q.CreateBalance(ctx, b); err != nil {
				return err
			}
		}
		var err error
		link, err = q.CreateEdgeLink(ctx, EdgeLink{
			EdgeID:              edgeID,
			SourceWalletID:      src.ID,
			DestinationWalletID: dst.ID,
			NFTWalletID:         nft.ID,
			TokenID:             ft.ID,
			NFTTokenID:          nt.ID,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed edge: %v", err)
	}
	return link
}

func TestServiceGetEdgeWallet(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	seedEdge(t, repo, 7, 100)

	view, err := svc.GetEdgeWallet(context.Background(), 7)
	if err != nil {
		t.Fatalf("get edge wallet: %v", err)
	}
	if view.EdgeID != 7 || view.SourceWallet.Volume != 100 || view.DestinationWallet.Volume != 0 || view.NFTWallet.Volume != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.TokenID != "ft-asset" || view.NFTTokenID != "nft-asset" {
		t.Fatalf("unexpected token ids %q %q", view.TokenID, view.NFTTokenID)
	}
	if view.SourceWallet.PrivateKey != "src-sk" {
		t.Fatalf("expected private key in view, got %q", view.SourceWallet.PrivateKey)
	}
}

func TestServiceGetEdgeWalletIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	seedEdge(t, repo, 3, 100)

	first, err := svc.GetEdgeWallet(context.Background(), 3)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := svc.GetEdgeWallet(context.Background(), 3)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("views differ:\n%s\n%s", a, b)
	}
	if strings.Contains(string(a), "wallet_id") {
		t.Fatalf("wallet ids must not be serialized: %s", a)
	}
}

func TestServiceUnknownEdge(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.GetEdgeWallet(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), "edge_id") {
		t.Fatalf("expected edge_id not found, got %v", err)
	}
}

func TestServiceFirstLinkWins(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	first := seedEdge(t, repo, 9, 100)
	seedEdge(t, repo, 9, 50)

	view, err := svc.GetEdgeWallet(context.Background(), 9)
	if err != nil {
		t.Fatalf("get edge wallet: %v", err)
	}
	if view.SourceWallet.WalletID != first.SourceWalletID || view.SourceWallet.Volume != 100 {
		t.Fatalf("expected the first link to be served, got %+v", view.SourceWallet)
	}
	ids, _ := repo.ListEdgeIDs(context.Background())
	if len(ids) != 1 || ids[0] != 9 {
		t.Fatalf("expected one distinct edge id, got %v", ids)
	}
}

func TestMemoryRepositoryRollsBack(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(q Querier) error {
		if _, err := q.CreateWallet(ctx, "pk", "sk"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	w, err := repo.CreateWallet(ctx, "pk2", "sk2")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.ID != 1 {
		t.Fatalf("rolled back wallet must not consume an id, got %d", w.ID)
	}
	if _, err := repo.WalletView(ctx, w.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wallet without balance must be not found, got %v", err)
	}
}

func TestMemoryRepositoryConstraints(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w, _ := repo.CreateWallet(ctx, "pk", "sk")
	tok, _ := repo.CreateToken(ctx, "asset")

	if err := repo.CreateBalance(ctx, Balance{WalletID: w.ID, TokenID: 99}); !errors.Is(err, ErrStore) {
		t.Fatalf("expected store error for missing token, got %v", err)
	}
	if err := repo.CreateBalance(ctx, Balance{WalletID: w.ID, TokenID: tok.ID, Volume: 5}); err != nil {
		t.Fatalf("create balance: %v", err)
	}
	if err := repo.CreateBalance(ctx, Balance{WalletID: w.ID, TokenID: tok.ID}); !errors.Is(err, ErrStore) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
	if err := repo.UpdateBalance(ctx, Balance{WalletID: w.ID, TokenID: tok.ID, Volume: 4}); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	b, err := repo.FindBalanceByWallet(ctx, w.ID)
	if err != nil || b.Volume != 4 {
		t.Fatalf("expected volume 4, got %+v (%v)", b, err)
	}
}

func TestHandlerEdgeWallet(t *testing.T) {
	repo := NewMemoryRepository()
	seedEdge(t, repo, 7, 100)

	for _, tc := range []struct {
		name   string
		redact bool
		path   string
		status int
		want   string
	}{
		{name: "found", path: "/edges/7/wallet", status: fiber.StatusOK, want: `"private_key":"src-sk"`},
		{name: "redacted", redact: true, path: "/edges/7/wallet", status: fiber.StatusOK, want: `"private_key":""`},
		{name: "missing", path: "/edges/8/wallet", status: fiber.StatusNotFound, want: "edge_id 8 not found"},
		{name: "invalid", path: "/edges/abc/wallet", status: fiber.StatusBadRequest, want: "invalid edgeId"},
		{name: "zero", path: "/edges/0/wallet", status: fiber.StatusBadRequest, want: "invalid edgeId"},
		{name: "negative", path: "/edges/-3/wallet", status: fiber.StatusBadRequest, want: "invalid edgeId"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/edges/:edgeId/wallet", NewHandler(NewService(repo), tc.redact).EdgeWallet)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.StatusCode, body)
			}
			if !strings.Contains(string(body), tc.want) {
				t.Fatalf("expected body to contain %q, got %s", tc.want, body)
			}
		})
	}
}
