package concurrency

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginGetCommit(t *testing.T) {
	tm := NewTransactionManager()
	clientId := uuid.New()

	txn, err := tm.Begin(clientId)
	require.NoError(t, err)
	assert.Equal(t, clientId, txn.GetClientID())

	_, err = tm.Begin(clientId)
	assert.Error(t, err, "a client has at most one running transaction")

	got, found := tm.GetTransaction(clientId)
	require.True(t, found)
	assert.Same(t, txn, got)

	tm.Commit(clientId)
	_, found = tm.GetTransaction(clientId)
	assert.False(t, found)

	// Commit of an unknown client is a no-op.
	tm.Commit(uuid.New())
}
