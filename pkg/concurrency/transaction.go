// Package concurrency provides the transaction handles passed through
// index operations. The index treats them as opaque; locking, logging and
// recovery are the concern of outer subsystems.
package concurrency

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Each client has at most one transaction running at a given time, so the
// client id uniquely identifies the transaction.
type Transaction struct {
	clientId uuid.UUID
}

// GetClientID returns the id of the client running this transaction.
func (t *Transaction) GetClientID() uuid.UUID {
	return t.clientId
}

// TransactionManager tracks the set of running transactions.
type TransactionManager struct {
	transactions map[uuid.UUID]*Transaction
	mtx          sync.RWMutex
}

// NewTransactionManager returns an empty manager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{transactions: make(map[uuid.UUID]*Transaction)}
}

// Begin starts a transaction for the given client. Errors if the client
// already has one running.
func (tm *TransactionManager) Begin(clientId uuid.UUID) (*Transaction, error) {
	tm.mtx.Lock()
	defer tm.mtx.Unlock()
	if _, found := tm.transactions[clientId]; found {
		return nil, errors.New("transaction already began")
	}
	t := &Transaction{clientId: clientId}
	tm.transactions[clientId] = t
	return t, nil
}

// GetTransaction returns the running transaction for the given client.
func (tm *TransactionManager) GetTransaction(clientId uuid.UUID) (*Transaction, bool) {
	tm.mtx.RLock()
	defer tm.mtx.RUnlock()
	t, found := tm.transactions[clientId]
	return t, found
}

// Commit ends the given client's transaction. Committing a client with no
// running transaction is a no-op.
func (tm *TransactionManager) Commit(clientId uuid.UUID) {
	tm.mtx.Lock()
	defer tm.mtx.Unlock()
	delete(tm.transactions, clientId)
}
