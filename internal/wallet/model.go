package wallet

// Wallet is an ed25519 keypair held on behalf of an edge. Keys are base58 encoded.
type Wallet struct {
	ID         int64
	PublicKey  string
	PrivateKey string
}

// Token is the local name of one ledger asset; Token holds the id of its CREATE transaction.
type Token struct {
	ID    int64
	Token string
}

// Balance is the local belief about how many units of a token a wallet holds.
type Balance struct {
	WalletID int64
	TokenID  int64
	Volume   int64
}

// EdgeLink binds an edge to the wallet trio and tokens created for it.
type EdgeLink struct {
	ID                  int64
	EdgeID              int64
	SourceWalletID      int64
	DestinationWalletID int64
	NFTWalletID         int64
	TokenID             int64
	NFTTokenID          int64
}

// WalletView flattens a wallet, its tracked token and its volume.
type WalletView struct {
	WalletID   int64  `json:"-"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	TokenID    string `json:"token_id"`
	Volume     int64  `json:"volume"`
}

// EdgeWalletView is the read model returned for an edge.
type EdgeWalletView struct {
	EdgeID            int64      `json:"edge_id"`
	SourceWallet      WalletView `json:"source_wallet"`
	DestinationWallet WalletView `json:"destination_wallet"`
	NFTWallet         WalletView `json:"nft_wallet"`
	TokenID           string     `json:"token_id"`
	NFTTokenID        string     `json:"nft_token_id"`
}

// Redacted returns a copy without private keys.
func (v EdgeWalletView) Redacted() EdgeWalletView {
	v.SourceWallet.PrivateKey = ""
	v.DestinationWallet.PrivateKey = ""
	v.NFTWallet.PrivateKey = ""
	return v
}
