package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when an edge, wallet or balance row is missing.
	ErrNotFound = errors.New("not found")

	// ErrStore wraps failures of the underlying database.
	ErrStore = errors.New("balance store failure")
)

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d %w", what, id, ErrNotFound)
}

// Querier reads and writes balance store rows. Implementations are either bound
// to a connection pool or to one open transaction.
type Querier interface {
	CreateWallet(ctx context.Context, publicKey, privateKey string) (Wallet, error)
	CreateToken(ctx context.Context, assetID string) (Token, error)
	CreateBalance(ctx context.Context, balance Balance) error
	CreateEdgeLink(ctx context.Context, link EdgeLink) (EdgeLink, error)

	// FindEdgeLink returns the oldest link recorded for edgeID.
	FindEdgeLink(ctx context.Context, edgeID int64) (EdgeLink, error)
	// FindBalanceByWallet returns the first balance row of walletID.
	FindBalanceByWallet(ctx context.Context, walletID int64) (Balance, error)
	UpdateBalance(ctx context.Context, balance Balance) error
	WalletView(ctx context.Context, walletID int64) (WalletView, error)
	ListEdgeIDs(ctx context.Context) ([]int64, error)
}

// Repository is a Querier that can also scope work to one local transaction.
// WithTx commits when fn returns nil and rolls back otherwise.
type Repository interface {
	Querier
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxPool interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores the balance mirror in PostgreSQL.
type PostgresRepository struct {
	*queries
	pool pgxPool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return newPostgresRepository(pool)
}

func newPostgresRepository(pool pgxPool) *PostgresRepository {
	return &PostgresRepository{queries: &queries{db: pool}, pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

type queries struct {
	db dbtx
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func (q *queries) CreateWallet(ctx context.Context, publicKey, privateKey string) (Wallet, error) {
	w := Wallet{PublicKey: publicKey, PrivateKey: privateKey}
	err := q.db.QueryRow(ctx, `INSERT INTO wallets (public_key, private_key)
        VALUES ($1, $2) RETURNING id`, publicKey, privateKey).Scan(&w.ID)
	if err != nil {
		return Wallet{}, storeErr("create wallet", err)
	}
	return w, nil
}

func (q *queries) CreateToken(ctx context.Context, assetID string) (Token, error) {
	t := Token{Token: assetID}
	if err := q.db.QueryRow(ctx, `INSERT INTO tokens (token) VALUES ($1) RETURNING id`, assetID).Scan(&t.ID); err != nil {
		return Token{}, storeErr("create token", err)
	}
	return t, nil
}

func (q *queries) CreateBalance(ctx context.Context, balance Balance) error {
	_, err := q.db.Exec(ctx, `INSERT INTO wallets_to_tokens (wallet_id, token_id, volume)
        VALUES ($1, $2, $3)`, balance.WalletID, balance.TokenID, balance.Volume)
	if err != nil {
		return storeErr("create balance", err)
	}
	return nil
}

func (q *queries) CreateEdgeLink(ctx context.Context, link EdgeLink) (EdgeLink, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO edges_to_wallets
        (edge_id, src_wallet_id, dst_wallet_id, nft_wallet_id, token_id, nft_token_id)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		link.EdgeID, link.SourceWalletID, link.DestinationWalletID, link.NFTWalletID, link.TokenID, link.NFTTokenID,
	).Scan(&link.ID)
	if err != nil {
		return EdgeLink{}, storeErr("create edge link", err)
	}
	return link, nil
}

func (q *queries) FindEdgeLink(ctx context.Context, edgeID int64) (EdgeLink, error) {
	var link EdgeLink
	err := q.db.QueryRow(ctx, `SELECT id, edge_id, src_wallet_id, dst_wallet_id, nft_wallet_id, token_id, nft_token_id
        FROM edges_to_wallets WHERE edge_id = $1 ORDER BY id LIMIT 1`, edgeID).
		Scan(&link.ID, &link.EdgeID, &link.SourceWalletID, &link.DestinationWalletID, &link.NFTWalletID, &link.TokenID, &link.NFTTokenID)
	if errors.Is(err, pgx.ErrNoRows) {
		return EdgeLink{}, notFound("edge_id", edgeID)
	}
	if err != nil {
		return EdgeLink{}, storeErr("find edge link", err)
	}
	return link, nil
}

func (q *queries) FindBalanceByWallet(ctx context.Context, walletID int64) (Balance, error) {
	var b Balance
	err := q.db.QueryRow(ctx, `SELECT wallet_id, token_id, volume FROM wallets_to_tokens
        WHERE wallet_id = $1 ORDER BY token_id LIMIT 1`, walletID).Scan(&b.WalletID, &b.TokenID, &b.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, notFound("wallet_id", walletID)
	}
	if err != nil {
		return Balance{}, storeErr("find balance", err)
	}
	return b, nil
}

func (q *queries) UpdateBalance(ctx context.Context, balance Balance) error {
	tag, err := q.db.Exec(ctx, `UPDATE wallets_to_tokens SET volume = $3
        WHERE wallet_id = $1 AND token_id = $2`, balance.WalletID, balance.TokenID, balance.Volume)
	if err != nil {
		return storeErr("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("wallet_id", balance.WalletID)
	}
	return nil
}

func (q *queries) WalletView(ctx context.Context, walletID int64) (WalletView, error) {
	var v WalletView
	err := q.db.QueryRow(ctx, `SELECT w.id, w.public_key, w.private_key, t.token, wt.volume
        FROM wallets_to_tokens wt
        JOIN tokens t ON t.id = wt.token_id
        JOIN wallets w ON w.id = wt.wallet_id
        WHERE wt.wallet_id = $1
        ORDER BY wt.token_id LIMIT 1`, walletID).Scan(&v.WalletID, &v.PublicKey, &v.PrivateKey, &v.TokenID, &v.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return WalletView{}, notFound("wallet_id", walletID)
	}
	if err != nil {
		return WalletView{}, storeErr("wallet view", err)
	}
	return v, nil
}

func (q *queries) ListEdgeIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT edge_id FROM edges_to_wallets ORDER BY edge_id`)
	if err != nil {
		return nil, storeErr("list edges", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, storeErr("list edges", err)
	}
	return ids, nil
}
