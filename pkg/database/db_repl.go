package database

import (
	"fmt"
	"strconv"
	"strings"

	"hashdb/pkg/concurrency"
	"hashdb/pkg/repl"

	"github.com/google/uuid"
)

// DatabaseRepl builds the REPL surface for the given database. Commands
// that touch entries run under the calling client's transaction, if one
// was begun with the transaction command.
func DatabaseRepl(db *Database, tm *concurrency.TransactionManager) *repl.REPL {
	txnFor := func(config *repl.REPLConfig) *concurrency.Transaction {
		txn, _ := tm.GetTransaction(config.GetAddr())
		return txn
	}

	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleCreateTable(db, payload)
	}, "Create a table. usage: create table <table>")

	r.AddCommand("find", func(payload string, config *repl.REPLConfig) (string, error) {
		return HandleFind(db, payload, txnFor(config))
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, config *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, payload, txnFor(config))
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("delete", func(payload string, config *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, payload, txnFor(config))
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("transaction", func(payload string, config *repl.REPLConfig) (string, error) {
		return HandleTransaction(tm, payload, config.GetAddr())
	}, "Begin or commit a transaction. usage: transaction <begin|commit>")

	r.AddCommand("print", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandlePrint(db, payload)
	}, "Print out the internal data representation. usage: print from <table>")

	r.AddCommand("verify", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleVerify(db, payload)
	}, "Check the table's hash invariants. usage: verify <table>")

	return r
}

// Handle create table.
func HandleCreateTable(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: create table <table>
	if len(fields) != 3 || fields[1] != "table" {
		return "", fmt.Errorf("usage: create table <table>")
	}
	tableName := fields[2]
	if _, err := db.CreateTable(tableName); err != nil {
		return "", err
	}
	return fmt.Sprintf("table %s created.\n", tableName), nil
}

// Handle find.
func HandleFind(db *Database, payload string, txn *concurrency.Transaction) (string, error) {
	fields := strings.Fields(payload)
	// Usage: find <key> from <table>
	if len(fields) != 4 || fields[2] != "from" {
		return "", fmt.Errorf("usage: find <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	table, err := db.GetTable(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	found, err := table.Find(key, txn)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return fmt.Sprintf("found entry: (%d, %d)\n", found.Key, found.Value), nil
}

// Handle insert.
func HandleInsert(db *Database, payload string, txn *concurrency.Transaction) error {
	fields := strings.Fields(payload)
	// Usage: insert <key> <value> into <table>
	if len(fields) != 5 || fields[3] != "into" {
		return fmt.Errorf("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := db.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err = table.Insert(key, value, txn); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

// Handle delete.
func HandleDelete(db *Database, payload string, txn *concurrency.Transaction) error {
	fields := strings.Fields(payload)
	// Usage: delete <key> from <table>
	if len(fields) != 4 || fields[2] != "from" {
		return fmt.Errorf("usage: delete <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	table, err := db.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err = table.Delete(key, txn); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

// Handle transaction begin/commit.
func HandleTransaction(tm *concurrency.TransactionManager, payload string, clientId uuid.UUID) (string, error) {
	fields := strings.Fields(payload)
	// Usage: transaction <begin|commit>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: transaction <begin|commit>")
	}
	switch fields[1] {
	case "begin":
		if _, err := tm.Begin(clientId); err != nil {
			return "", fmt.Errorf("transaction error: %v", err)
		}
		return "transaction started\n", nil
	case "commit":
		tm.Commit(clientId)
		return "transaction committed\n", nil
	default:
		return "", fmt.Errorf("usage: transaction <begin|commit>")
	}
}

// Handle printing.
func HandlePrint(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: print from <table>
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: print from <table>")
	}
	table, err := db.GetTable(fields[2])
	if err != nil {
		return "", fmt.Errorf("print error: %v", err)
	}
	w := new(strings.Builder)
	table.Print(w)
	return w.String(), nil
}

// Handle integrity verification.
func HandleVerify(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: verify <table>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: verify <table>")
	}
	table, err := db.GetTable(fields[1])
	if err != nil {
		return "", fmt.Errorf("verify error: %v", err)
	}
	if err = table.VerifyIntegrity(); err != nil {
		return "", fmt.Errorf("verify error: %v", err)
	}
	return "ok\n", nil
}
