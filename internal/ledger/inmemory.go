package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// InMemory is a concurrency-safe UTXO ledger useful for unit tests and local development.
// It verifies ids and signatures, enforces asset links and amount conservation and
// rejects double spends, which is the only protection transfers have against racing
// on the same output.
type InMemory struct {
	mu           sync.RWMutex
	transactions map[string]Transaction
	order        []string
	spent        map[OutputRef]bool
	submitted    int
	failures     []error
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		transactions: make(map[string]Transaction),
		spent:        make(map[OutputRef]bool),
	}
}

// Ping always succeeds.
func (l *InMemory) Ping(context.Context) error { return nil }

// ListUnspentOutputs returns unspent outputs owned by publicKey in commit order.
func (l *InMemory) ListUnspentOutputs(_ context.Context, publicKey string) ([]OutputRef, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var refs []OutputRef
	for _, id := range l.order {
		tx := l.transactions[id]
		for i, out := range tx.Outputs {
			ref := OutputRef{TransactionID: id, OutputIndex: i}
			if l.spent[ref] || !slices.Contains(out.PublicKeys, publicKey) {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// GetTransaction returns a committed transaction.
func (l *InMemory) GetTransaction(_ context.Context, id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.transactions[id]
	if !ok {
		return Transaction{}, fmt.Errorf("get transaction %s: %w", id, ErrNotFound)
	}
	return tx, nil
}

// PostTransactionCommit validates and commits tx.
func (l *InMemory) PostTransactionCommit(_ context.Context, tx Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitted++
	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		return Transaction{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	if err := Verify(tx); err != nil {
		return Transaction{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	produced, err := sumOutputs(tx)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	switch tx.Operation {
	case OperationCreate:
		if len(tx.Inputs) != 1 || tx.Inputs[0].Fulfills != nil {
			return Transaction{}, fmt.Errorf("%w: %w: CREATE must have one unlinked input", ErrSubmission, ErrInvalidTransaction)
		}
	case OperationTransfer:
		consumed, err := l.checkInputs(tx)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: %w", ErrSubmission, err)
		}
		if consumed != produced {
			return Transaction{}, fmt.Errorf("%w: %w: inputs carry %d, outputs %d", ErrSubmission, ErrInvalidTransaction, consumed, produced)
		}
	default:
		return Transaction{}, fmt.Errorf("%w: %w: operation %q", ErrSubmission, ErrInvalidTransaction, tx.Operation)
	}

	// A replayed TRANSFER already fails as a double spend above.
	id := tx.TxID()
	if _, exists := l.transactions[id]; exists {
		return Transaction{}, fmt.Errorf("%w: transaction %s already committed", ErrSubmission, id)
	}
	for _, in := range tx.Inputs {
		if in.Fulfills != nil {
			l.spent[*in.Fulfills] = true
		}
	}
	l.transactions[id] = tx
	l.order = append(l.order, id)
	return tx, nil
}

func (l *InMemory) checkInputs(tx Transaction) (int64, error) {
	var total int64
	seen := make(map[OutputRef]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if in.Fulfills == nil {
			return 0, fmt.Errorf("%w: input %d does not reference an output", ErrInvalidTransaction, i)
		}
		ref := *in.Fulfills
		if seen[ref] || l.spent[ref] {
			return 0, fmt.Errorf("%w: %s:%d", ErrDoubleSpend, ref.TransactionID, ref.OutputIndex)
		}
		seen[ref] = true

		parent, ok := l.transactions[ref.TransactionID]
		if !ok {
			return 0, fmt.Errorf("%w: input %d spends unknown transaction %s", ErrInvalidTransaction, i, ref.TransactionID)
		}
		if parent.AssetID() != tx.Asset.ID {
			return 0, fmt.Errorf("%w: input %d belongs to asset %s", ErrInvalidTransaction, i, parent.AssetID())
		}
		amount, err := parent.OutputAmount(ref.OutputIndex)
		if err != nil {
			return 0, err
		}
		if !slices.Equal(parent.Outputs[ref.OutputIndex].PublicKeys, in.OwnersBefore) {
			return 0, fmt.Errorf("%w: input %d owners do not match the spent output", ErrInvalidTransaction, i)
		}
		total += amount
	}
	return total, nil
}

func sumOutputs(tx Transaction) (int64, error) {
	if len(tx.Outputs) == 0 {
		return 0, fmt.Errorf("%w: no outputs", ErrInvalidTransaction)
	}
	var total int64
	for i := range tx.Outputs {
		amount, err := tx.OutputAmount(i)
		if err != nil {
			return 0, err
		}
		if amount < 1 {
			return 0, fmt.Errorf("%w: output %d amount must be positive", ErrInvalidTransaction, i)
		}
		total += amount
	}
	return total, nil
}
