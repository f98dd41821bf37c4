package ledger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeIsCanonical(t *testing.T) {
	tx := MakeCreateTransaction(map[string]any{"z": 1, "a": "<b>"}, map[string]any{"co": "devr"}, nil, []string{"issuer"})

	raw, err := Serialize(tx)
	require.NoError(t, err)

	s := string(raw)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, `\u003c`, "html characters must not be escaped")
	assert.True(t, strings.HasPrefix(s, `{"asset":{"data":{"a":"<b>","z":1}},"id":null,"inputs":`), s)
}

func TestSerializeKeepsLineSeparatorsRaw(t *testing.T) {
	tx := MakeCreateTransaction(map[string]any{"a": "x\u2028y\u2029z", "b": `\u2028`}, nil, nil, []string{"issuer"})

	raw, err := Serialize(tx)
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"a":"x`+"\u2028"+`y`+"\u2029"+`z"`)
	// a literal backslash sequence stays escaped
	assert.Contains(t, s, `"b":"\\u2028"`)

	var back struct {
		Asset struct {
			Data map[string]string `json:"data"`
		} `json:"asset"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "x\u2028y\u2029z", back.Asset.Data["a"])
	assert.Equal(t, `\u2028`, back.Asset.Data["b"])
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	owner := mustKeypair(t)
	out := output(t, owner.PublicKey, 100)

	signed, err := SignTransaction(MakeCreateTransaction(map[string]any{}, nil, []Output{out}, []string{owner.PublicKey}), []string{owner.PrivateKey})
	require.NoError(t, err)
	require.NotNil(t, signed.ID)
	assert.Len(t, *signed.ID, 64)
	require.NotNil(t, signed.Inputs[0].Fulfillment)
	require.NoError(t, Verify(signed))

	tampered := signed
	tampered.Outputs = []Output{output(t, owner.PublicKey, 1000)}
	assert.ErrorIs(t, Verify(tampered), ErrInvalidTransaction)
}

func TestSigningIsDeterministic(t *testing.T) {
	owner := mustKeypair(t)
	tx := MakeCreateTransaction(map[string]any{"token": "NFT"}, nil, []Output{output(t, owner.PublicKey, 1)}, []string{owner.PublicKey})

	a, err := SignTransaction(tx, []string{owner.PrivateKey})
	require.NoError(t, err)
	b, err := SignTransaction(tx, []string{owner.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, *a.ID, *b.ID)
	assert.Nil(t, tx.Inputs[0].Fulfillment, "signing must not mutate the unsigned transaction")
}

func TestTransferLinksAsset(t *testing.T) {
	owner, receiver := mustKeypair(t), mustKeypair(t)
	created, err := SignTransaction(MakeCreateTransaction(nil, nil, []Output{output(t, owner.PublicKey, 10)}, []string{owner.PublicKey}), []string{owner.PrivateKey})
	require.NoError(t, err)

	transfer, err := MakeTransferTransaction([]UnspentOutput{{Tx: created, OutputIndex: 0}}, []Output{output(t, receiver.PublicKey, 10)}, nil)
	require.NoError(t, err)
	assert.Equal(t, created.TxID(), transfer.AssetLinkID())
	assert.True(t, created.MatchesAsset(created.TxID()))
	assert.True(t, transfer.MatchesAsset(created.TxID()))
	assert.False(t, transfer.MatchesAsset("other"))

	raw, err := json.Marshal(transfer.Asset)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+created.TxID()+`"}`, string(raw))

	_, err = MakeTransferTransaction([]UnspentOutput{{Tx: created, OutputIndex: 3}}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestConditionShape(t *testing.T) {
	owner := mustKeypair(t)

	cond, err := MakeEd25519Condition(owner.PublicKey, true)
	require.NoError(t, err)
	assert.Equal(t, "ed25519-sha-256", cond.Details.Type)
	assert.True(t, strings.HasPrefix(cond.URI, "ni:///sha-256;"))
	assert.True(t, strings.HasSuffix(cond.URI, "?fpt=ed25519-sha-256&cost=131072"))

	_, err = MakeEd25519Condition(owner.PublicKey, false)
	assert.ErrorIs(t, err, ErrUnsupportedCondition)

	_, err = MakeEd25519Condition("not-base58-0OIl", true)
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestPublicKeyOf(t *testing.T) {
	kp := mustKeypair(t)
	pub, err := PublicKeyOf(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, pub)
}

func TestAssetUnmarshal(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","operation":"TRANSFER","asset":{"id":"root"},"outputs":[{"amount":"7"}]}`), &tx))
	assert.Equal(t, "root", tx.AssetLinkID())
	assert.Equal(t, "root", tx.AssetID())

	amount, err := tx.OutputAmount(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, amount)
}
