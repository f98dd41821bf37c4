package provisioning

import (
	"github.com/congo-pay/edgewallet/internal/ledger"
)

// KeySource produces the keypair of each new wallet.
type KeySource interface {
	NewKeypair() (ledger.Keypair, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func() (ledger.Keypair, error)

// NewKeypair calls f.
func (f KeySourceFunc) NewKeypair() (ledger.Keypair, error) {
	return f()
}

// Ed25519Keys generates fresh ed25519 keypairs from crypto/rand.
var Ed25519Keys KeySource = KeySourceFunc(ledger.GenerateKeypair)
