package hash

import (
	"errors"
	"io"
	"path/filepath"

	"hashdb/pkg/concurrency"
	"hashdb/pkg/entry"
	"hashdb/pkg/pager"
)

// HashIndex ties a HashTable to the file backing it, exposing the
// error-returning API the database layer expects.
type HashIndex struct {
	table *HashTable
	pool  *pager.BufferPool
}

// OpenIndex opens the index backed by the file at the given path, creating
// it if the file is empty. New indexes use the murmur hash, the numeric
// comparator, and the maximum header, directory and bucket capacities.
func OpenIndex(filename string) (*HashIndex, error) {
	pool, err := pager.New(filename)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(filename)
	var table *HashTable
	if pool.GetNumPages() == 0 {
		table, err = NewHashTable(name, pool, DefaultComparator, MurmurHasher,
			HEADER_MAX_DEPTH, DIRECTORY_MAX_DEPTH, MAX_BUCKET_SIZE)
		if err != nil {
			pool.Close()
			return nil, err
		}
	} else {
		table = OpenHashTable(name, pool, DefaultComparator, MurmurHasher,
			HEADER_PN, HEADER_MAX_DEPTH, DIRECTORY_MAX_DEPTH, MAX_BUCKET_SIZE)
	}
	return &HashIndex{table: table, pool: pool}, nil
}

// GetName returns the base file name of the file backing this index.
func (index *HashIndex) GetName() string {
	return index.table.GetName()
}

// GetPool returns the buffer pool backing this index.
func (index *HashIndex) GetPool() *pager.BufferPool {
	return index.pool
}

// GetTable returns the underlying hash table.
func (index *HashIndex) GetTable() *HashTable {
	return index.table
}

// Close flushes the index out through its buffer pool and closes the
// backing file.
func (index *HashIndex) Close() error {
	return index.pool.Close()
}

// Find returns the entry stored under the given key.
func (index *HashIndex) Find(key int64, txn *concurrency.Transaction) (entry.Entry, error) {
	value, found := index.table.GetValue(key, txn)
	if !found {
		return entry.Entry{}, errors.New("not found")
	}
	return entry.New(key, value), nil
}

// Insert adds the given key-value pair.
func (index *HashIndex) Insert(key int64, value int64, txn *concurrency.Transaction) error {
	if index.table.Insert(key, value, txn) {
		return nil
	}
	if _, found := index.table.GetValue(key, txn); found {
		return errors.New("key already in table")
	}
	return errors.New("insert failed")
}

// Delete removes the entry with the given key.
func (index *HashIndex) Delete(key int64, txn *concurrency.Transaction) error {
	if !index.table.Remove(key, txn) {
		return errors.New("key not found, delete aborted")
	}
	return nil
}

// VerifyIntegrity checks the extendible-hash invariants across the index.
func (index *HashIndex) VerifyIntegrity() error {
	return index.table.VerifyIntegrity()
}

// Print writes a representation of the whole index to the specified writer.
func (index *HashIndex) Print(w io.Writer) {
	index.table.PrintHT(w)
}
