package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrSubmission is returned when the ledger refuses or fails to commit a transaction.
	ErrSubmission = errors.New("ledger submission failed")

	// ErrNotFound indicates the ledger has no transaction with the requested id.
	ErrNotFound = errors.New("ledger transaction not found")

	// ErrDoubleSpend occurs when a transaction consumes an output that is already spent.
	ErrDoubleSpend = errors.New("output already spent")

	// ErrInvalidTransaction covers malformed, unsigned or badly signed transactions.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrUnsupportedCondition is returned for spend conditions other than a single ed25519 owner.
	ErrUnsupportedCondition = errors.New("unsupported spend condition")
)

// Operation is the kind of a ledger transaction.
type Operation string

const (
	OperationCreate   Operation = "CREATE"
	OperationTransfer Operation = "TRANSFER"

	// TransactionVersion is the transaction model version understood by the ledger.
	TransactionVersion = "2.0"
)

// OutputRef points at one output of a committed transaction.
type OutputRef struct {
	TransactionID string `json:"transaction_id"`
	OutputIndex   int    `json:"output_index"`
}

// ConditionDetails describes who may spend an output.
type ConditionDetails struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
}

// Condition is a crypto-condition attached to an output.
type Condition struct {
	Details ConditionDetails `json:"details"`
	URI     string           `json:"uri"`
}

// Output is a spendable amount of an asset locked by a condition.
type Output struct {
	Amount     string    `json:"amount"`
	Condition  Condition `json:"condition"`
	PublicKeys []string  `json:"public_keys"`
}

// Input consumes a previous output (TRANSFER) or names the issuers (CREATE).
type Input struct {
	Fulfillment  *string    `json:"fulfillment"`
	Fulfills     *OutputRef `json:"fulfills"`
	OwnersBefore []string   `json:"owners_before"`
}

// Asset carries the asset payload on CREATE and the asset link on TRANSFER.
type Asset struct {
	ID   string
	Data any
}

// MarshalJSON renders {"id": ...} for links and {"data": ...} otherwise.
func (a Asset) MarshalJSON() ([]byte, error) {
	if a.ID != "" {
		return json.Marshal(map[string]string{"id": a.ID})
	}
	return json.Marshal(map[string]any{"data": a.Data})
}

// UnmarshalJSON accepts either asset shape.
func (a *Asset) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID   *string `json:"id"`
		Data any     `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Data = raw.Data
	a.ID = ""
	if raw.ID != nil {
		a.ID = *raw.ID
	}
	return nil
}

// Transaction is a ledger transaction in wire form.
type Transaction struct {
	ID        *string   `json:"id"`
	Version   string    `json:"version"`
	Operation Operation `json:"operation"`
	Asset     Asset     `json:"asset"`
	Metadata  any       `json:"metadata"`
	Inputs    []Input   `json:"inputs"`
	Outputs   []Output  `json:"outputs"`
}

// TxID returns the transaction id or "" for unsigned transactions.
func (t Transaction) TxID() string {
	if t.ID == nil {
		return ""
	}
	return *t.ID
}

// AssetLinkID returns the asset id a TRANSFER moves.
func (t Transaction) AssetLinkID() string {
	if t.Operation != OperationTransfer {
		return ""
	}
	return t.Asset.ID
}

// AssetID returns the id of the asset this transaction created or moved.
func (t Transaction) AssetID() string {
	if t.Operation == OperationCreate {
		return t.TxID()
	}
	return t.AssetLinkID()
}

// MatchesAsset reports whether t is the CREATE of assetID or a TRANSFER of it.
func (t Transaction) MatchesAsset(assetID string) bool {
	switch t.Operation {
	case OperationCreate:
		return t.TxID() == assetID
	case OperationTransfer:
		return t.AssetLinkID() == assetID
	default:
		return false
	}
}

// OutputAmount parses the amount of the output at index.
func (t Transaction) OutputAmount(index int) (int64, error) {
	if index < 0 || index >= len(t.Outputs) {
		return 0, fmt.Errorf("%w: output %d out of range", ErrInvalidTransaction, index)
	}
	amount, err := strconv.ParseInt(t.Outputs[index].Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: output %d amount: %v", ErrInvalidTransaction, index, err)
	}
	return amount, nil
}

// UnspentOutput pairs a committed transaction with the index of one of its outputs.
type UnspentOutput struct {
	Tx          Transaction
	OutputIndex int
}

// Client is the contract implemented by ledger backends (BigchainDB over HTTP, in-memory).
type Client interface {
	ListUnspentOutputs(ctx context.Context, publicKey string) ([]OutputRef, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	// PostTransactionCommit blocks until the ledger confirms the commit.
	PostTransactionCommit(ctx context.Context, tx Transaction) (Transaction, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
