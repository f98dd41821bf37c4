package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	conditionType = "ed25519-sha-256"
	conditionCost = 131072
)

var (
	// DER prefixes of the ed25519-sha-256 fingerprint and fulfillment.
	fingerprintPrefix = []byte{0x30, 0x22, 0x80, 0x20}
	fulfillmentPrefix = []byte{0xa4, 0x64, 0x80, 0x20}
	signaturePrefix   = []byte{0x81, 0x40}
	b64               = base64.RawURLEncoding
)

// Keypair is a base58 encoded ed25519 key pair. PrivateKey holds the 32 byte seed.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeypair creates a fresh ed25519 key pair.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return Keypair{
		PublicKey:  base58.Encode(pub),
		PrivateKey: base58.Encode(priv.Seed()),
	}, nil
}

// PublicKeyOf derives the base58 public key for a base58 private key.
func PublicKeyOf(privateKey string) (string, error) {
	priv, err := decodePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return base58.Encode(priv.Public().(ed25519.PublicKey)), nil
}

func decodePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidTransaction, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidTransaction, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func decodePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrInvalidTransaction, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("%w: private key has %d bytes", ErrInvalidTransaction, len(raw))
	}
}

func conditionURI(pub ed25519.PublicKey) string {
	fingerprint := sha256.Sum256(append(append([]byte{}, fingerprintPrefix...), pub...))
	return fmt.Sprintf("ni:///sha-256;%s?fpt=%s&cost=%d", b64.EncodeToString(fingerprint[:]), conditionType, conditionCost)
}

func encodeFulfillment(pub ed25519.PublicKey, sig []byte) string {
	buf := make([]byte, 0, len(fulfillmentPrefix)+len(pub)+len(signaturePrefix)+len(sig))
	buf = append(buf, fulfillmentPrefix...)
	buf = append(buf, pub...)
	buf = append(buf, signaturePrefix...)
	buf = append(buf, sig...)
	return b64.EncodeToString(buf)
}

func decodeFulfillment(s string) (ed25519.PublicKey, []byte, error) {
	raw, err := b64.DecodeString(s)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fulfillment encoding: %v", ErrInvalidTransaction, err)
	}
	const size = 4 + ed25519.PublicKeySize + 2 + ed25519.SignatureSize
	if len(raw) != size || !bytes.HasPrefix(raw, fulfillmentPrefix) {
		return nil, nil, fmt.Errorf("%w: not an ed25519-sha-256 fulfillment", ErrInvalidTransaction)
	}
	pub := raw[4 : 4+ed25519.PublicKeySize]
	rest := raw[4+ed25519.PublicKeySize:]
	if !bytes.HasPrefix(rest, signaturePrefix) {
		return nil, nil, fmt.Errorf("%w: malformed fulfillment signature", ErrInvalidTransaction)
	}
	return ed25519.PublicKey(pub), rest[2:], nil
}
