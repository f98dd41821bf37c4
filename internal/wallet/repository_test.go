package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

var linkColumns = []string{"id", "edge_id", "src_wallet_id", "dst_wallet_id", "nft_wallet_id", "token_id", "nft_token_id"}

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newPostgresRepository(mock), mock
}

func TestPostgresFindEdgeLinkServesOldestLink(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM edges_to_wallets WHERE edge_id = \$1 ORDER BY id LIMIT 1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(linkColumns).AddRow(int64(1), int64(7), int64(1), int64(2), int64(3), int64(1), int64(2)))

	link, err := repo.FindEdgeLink(context.Background(), 7)
	if err != nil {
		t.Fatalf("find link: %v", err)
	}
	want := EdgeLink{ID: 1, EdgeID: 7, SourceWalletID: 1, DestinationWalletID: 2, NFTWalletID: 3, TokenID: 1, NFTTokenID: 2}
	if link != want {
		t.Fatalf("expected %+v got %+v", want, link)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresFindEdgeLinkMissing(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM edges_to_wallets WHERE edge_id = \$1`).
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows(linkColumns))

	_, err := repo.FindEdgeLink(context.Background(), 8)
	if !errors.Is(err, ErrNotFound) || err.Error() != "edge_id 8 not found" {
		t.Fatalf("expected edge_id 8 not found, got %v", err)
	}
}

func TestPostgresUpdateBalanceWithoutRowIsNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`UPDATE wallets_to_tokens SET volume = \$3`).
		WithArgs(int64(5), int64(1), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`UPDATE wallets_to_tokens SET volume = \$3`).
		WithArgs(int64(4), int64(1), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateBalance(context.Background(), Balance{WalletID: 5, TokenID: 1, Volume: 9})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.UpdateBalance(context.Background(), Balance{WalletID: 4, TokenID: 1, Volume: 9}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresListEdgeIDs(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT DISTINCT edge_id FROM edges_to_wallets ORDER BY edge_id`).
		WillReturnRows(pgxmock.NewRows([]string{"edge_id"}).AddRow(int64(3)).AddRow(int64(7)))

	ids, err := repo.ListEdgeIDs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestPostgresWithTxCommitsAndRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO tokens \(token\) VALUES \(\$1\) RETURNING id`).
		WithArgs("asset-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	err := repo.WithTx(ctx, func(q Querier) error {
		_, err := q.CreateToken(ctx, "asset-1")
		return err
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}

	boom := errors.New("ledger down")
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := repo.WithTx(ctx, func(Querier) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
