package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// MakeEd25519Condition locks an output to publicKey. Only exclusive single-owner
// conditions are supported.
func MakeEd25519Condition(publicKey string, exclusive bool) (Condition, error) {
	if !exclusive {
		return Condition{}, fmt.Errorf("%w: shared ownership", ErrUnsupportedCondition)
	}
	pub, err := decodePublicKey(publicKey)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Details: ConditionDetails{Type: conditionType, PublicKey: publicKey},
		URI:     conditionURI(pub),
	}, nil
}

// MakeOutput builds an output of amount locked by condition.
func MakeOutput(condition Condition, amount string) Output {
	return Output{
		Amount:     amount,
		Condition:  condition,
		PublicKeys: []string{condition.Details.PublicKey},
	}
}

// MakeCreateTransaction builds an unsigned CREATE issued by the given public keys.
func MakeCreateTransaction(asset, metadata any, outputs []Output, issuers []string) Transaction {
	return Transaction{
		Version:   TransactionVersion,
		Operation: OperationCreate,
		Asset:     Asset{Data: asset},
		Metadata:  metadata,
		Inputs:    []Input{{OwnersBefore: append([]string(nil), issuers...)}},
		Outputs:   outputs,
	}
}

// MakeTransferTransaction builds an unsigned TRANSFER consuming the given outputs.
// All consumed outputs must belong to the same asset.
func MakeTransferTransaction(unspent []UnspentOutput, outputs []Output, metadata any) (Transaction, error) {
	if len(unspent) == 0 {
		return Transaction{}, fmt.Errorf("%w: transfer needs at least one input", ErrInvalidTransaction)
	}
	assetID := unspent[0].Tx.AssetID()
	inputs := make([]Input, 0, len(unspent))
	for _, u := range unspent {
		if u.OutputIndex < 0 || u.OutputIndex >= len(u.Tx.Outputs) {
			return Transaction{}, fmt.Errorf("%w: output %d of %s out of range", ErrInvalidTransaction, u.OutputIndex, u.Tx.TxID())
		}
		if u.Tx.AssetID() != assetID {
			return Transaction{}, fmt.Errorf("%w: inputs span multiple assets", ErrInvalidTransaction)
		}
		inputs = append(inputs, Input{
			Fulfills:     &OutputRef{TransactionID: u.Tx.TxID(), OutputIndex: u.OutputIndex},
			OwnersBefore: append([]string(nil), u.Tx.Outputs[u.OutputIndex].PublicKeys...),
		})
	}
	return Transaction{
		Version:   TransactionVersion,
		Operation: OperationTransfer,
		Asset:     Asset{ID: assetID},
		Metadata:  metadata,
		Inputs:    inputs,
		Outputs:   outputs,
	}, nil
}

// SignTransaction fulfills every input with the matching private key and assigns the id.
func SignTransaction(tx Transaction, privateKeys []string) (Transaction, error) {
	keys := make(map[string]ed25519.PrivateKey, len(privateKeys))
	for _, k := range privateKeys {
		priv, err := decodePrivateKey(k)
		if err != nil {
			return Transaction{}, err
		}
		keys[base58.Encode(priv.Public().(ed25519.PublicKey))] = priv
	}

	signed := unsignedCopy(tx)
	payload, err := Serialize(signed)
	if err != nil {
		return Transaction{}, err
	}
	for i, in := range signed.Inputs {
		if len(in.OwnersBefore) != 1 {
			return Transaction{}, fmt.Errorf("%w: input %d has %d owners", ErrUnsupportedCondition, i, len(in.OwnersBefore))
		}
		priv, ok := keys[in.OwnersBefore[0]]
		if !ok {
			return Transaction{}, fmt.Errorf("%w: no private key for input %d owner %s", ErrInvalidTransaction, i, in.OwnersBefore[0])
		}
		sig := ed25519.Sign(priv, inputDigest(payload, in.Fulfills))
		fulfillment := encodeFulfillment(priv.Public().(ed25519.PublicKey), sig)
		signed.Inputs[i].Fulfillment = &fulfillment
	}

	id, err := computeID(signed)
	if err != nil {
		return Transaction{}, err
	}
	signed.ID = &id
	return signed, nil
}

// Verify checks the id and every input signature of a signed transaction.
func Verify(tx Transaction) error {
	if tx.ID == nil {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	id, err := computeID(tx)
	if err != nil {
		return err
	}
	if id != *tx.ID {
		return fmt.Errorf("%w: id mismatch", ErrInvalidTransaction)
	}
	payload, err := Serialize(unsignedCopy(tx))
	if err != nil {
		return err
	}
	for i, in := range tx.Inputs {
		if in.Fulfillment == nil {
			return fmt.Errorf("%w: input %d is not fulfilled", ErrInvalidTransaction, i)
		}
		if len(in.OwnersBefore) != 1 {
			return fmt.Errorf("%w: input %d has %d owners", ErrUnsupportedCondition, i, len(in.OwnersBefore))
		}
		pub, sig, err := decodeFulfillment(*in.Fulfillment)
		if err != nil {
			return err
		}
		if base58.Encode(pub) != in.OwnersBefore[0] {
			return fmt.Errorf("%w: input %d signed by a foreign key", ErrInvalidTransaction, i)
		}
		if !ed25519.Verify(pub, inputDigest(payload, in.Fulfills), sig) {
			return fmt.Errorf("%w: input %d signature", ErrInvalidTransaction, i)
		}
	}
	return nil
}

// Serialize renders tx as canonical JSON: sorted keys, no whitespace, no HTML
// escaping, and U+2028/U+2029 written raw as BigchainDB's encoder does.
func Serialize(tx Transaction) ([]byte, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize transaction: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return rawLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// rawLineSeparators undoes encoding/json's \u2028 and \u2029 escapes. Every
// backslash in encoder output opens an escape, so escapes are walked pairwise.
func rawLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+5 < len(b) && string(b[i+2:i+5]) == "202" && (b[i+5] == '8' || b[i+5] == '9') {
			if b[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func computeID(tx Transaction) (string, error) {
	body := tx
	body.ID = nil
	payload, err := Serialize(body)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func inputDigest(payload []byte, fulfills *OutputRef) []byte {
	h := sha3.New256()
	h.Write(payload)
	if fulfills != nil {
		h.Write([]byte(fulfills.TransactionID + strconv.Itoa(fulfills.OutputIndex)))
	}
	return h.Sum(nil)
}

// unsignedCopy returns tx with a fresh inputs slice, no fulfillments and no id.
func unsignedCopy(tx Transaction) Transaction {
	out := tx
	out.ID = nil
	out.Inputs = make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		out.Inputs[i] = Input{Fulfills: in.Fulfills, OwnersBefore: in.OwnersBefore}
	}
	return out
}
