package ledger

// FailNextCommits makes the next commits fail with the given errors, in order.
func (l *InMemory) FailNextCommits(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, errs...)
}

// Submitted reports how many commits were attempted, failed ones included.
func (l *InMemory) Submitted() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.submitted
}

// Committed returns committed transactions in commit order.
func (l *InMemory) Committed() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.transactions[id])
	}
	return out
}
