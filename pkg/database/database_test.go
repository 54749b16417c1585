package database

import (
	"strings"
	"testing"

	"hashdb/pkg/concurrency"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetTable(t *testing.T) {
	db := setupDatabase(t)

	created, err := db.CreateTable("users")
	require.NoError(t, err)
	got, err := db.GetTable("users")
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = db.CreateTable("users")
	assert.Error(t, err, "creating an existing table should fail")

	_, err = db.CreateTable("no spaces allowed")
	assert.Error(t, err, "table names must be alphanumeric")

	_, err = db.GetTable("missing")
	assert.Error(t, err)
	assert.ElementsMatch(t, []string{"users"}, db.GetTables())
}

func TestReplInsertFindDelete(t *testing.T) {
	db := setupDatabase(t)
	_, err := db.CreateTable("t")
	require.NoError(t, err)

	require.NoError(t, HandleInsert(db, "insert 1 100 into t", nil))
	assert.Error(t, HandleInsert(db, "insert 1 200 into t", nil), "duplicate insert should error")

	out, err := HandleFind(db, "find 1 from t", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "(1, 100)")

	require.NoError(t, HandleDelete(db, "delete 1 from t", nil))
	_, err = HandleFind(db, "find 1 from t", nil)
	assert.Error(t, err)
}

func TestReplUsageErrors(t *testing.T) {
	db := setupDatabase(t)

	assert.Error(t, HandleInsert(db, "insert", nil))
	assert.Error(t, HandleDelete(db, "delete 1 t", nil))
	_, err := HandleFind(db, "find x from t", nil)
	assert.Error(t, err)
	_, err = HandleCreateTable(db, "create t")
	assert.Error(t, err)
	_, err = HandleTransaction(concurrency.NewTransactionManager(), "transaction rollback", uuid.New())
	assert.Error(t, err)
}

func TestReplTransactionLifecycle(t *testing.T) {
	tm := concurrency.NewTransactionManager()
	clientId := uuid.New()

	out, err := HandleTransaction(tm, "transaction begin", clientId)
	require.NoError(t, err)
	assert.Contains(t, out, "started")
	txn, found := tm.GetTransaction(clientId)
	require.True(t, found, "begin should register a handle for the client")
	assert.Equal(t, clientId, txn.GetClientID())

	_, err = HandleTransaction(tm, "transaction begin", clientId)
	assert.Error(t, err, "a client has at most one running transaction")

	_, err = HandleTransaction(tm, "transaction commit", clientId)
	require.NoError(t, err)
	_, found = tm.GetTransaction(clientId)
	assert.False(t, found)
}

// Entry commands issued through the REPL run under the client's
// transaction handle once one is begun.
func TestReplCommandsRunUnderTransaction(t *testing.T) {
	db := setupDatabase(t)
	_, err := db.CreateTable("t")
	require.NoError(t, err)
	tm := concurrency.NewTransactionManager()
	r := DatabaseRepl(db, tm)

	clientId := uuid.New()
	input := strings.NewReader("transaction begin\ninsert 1 100 into t\nfind 1 from t\ntransaction commit\n")
	output := new(strings.Builder)
	r.Run(clientId, "", input, output)

	got := output.String()
	assert.Contains(t, got, "transaction started")
	assert.Contains(t, got, "found entry: (1, 100)")
	assert.Contains(t, got, "transaction committed")
	_, found := tm.GetTransaction(clientId)
	assert.False(t, found, "commit should release the client's handle")
}

func TestReplVerifyAndPrint(t *testing.T) {
	db := setupDatabase(t)
	_, err := db.CreateTable("t")
	require.NoError(t, err)
	require.NoError(t, HandleInsert(db, "insert 7 70 into t", nil))

	out, err := HandleVerify(db, "verify t")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = HandlePrint(db, "print from t")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "(7, 70)"), "print output should contain the entry")
}
