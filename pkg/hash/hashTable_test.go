package hash

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"
)

var (
	errInsertFailed = errors.New("insert failed")
	errRemoveFailed = errors.New("remove failed")
)

// =====================================================================
// HELPERS
// =====================================================================

// identityHash makes routing decisions visible: the digest is the key
// itself. Tests using it stick to non-negative keys.
func identityHash(key int64) uint64 {
	return uint64(key)
}

// setupSmallTable creates a table with one directory (header depth 0), a
// directory capped at depth 2, and two-entry buckets, so splits and merges
// trigger after a handful of operations.
func setupSmallTable(t *testing.T) *HashTable {
	t.Helper()
	table, err := NewHashTable("small", newTestPool(t), DefaultComparator, identityHash, 0, 2, 2)
	if err != nil {
		t.Fatal("failed to create table:", err)
	}
	return table
}

func setupDefaultTable(t *testing.T) *HashTable {
	t.Helper()
	table, err := NewHashTable("default", newTestPool(t), DefaultComparator, MurmurHasher,
		HEADER_MAX_DEPTH, DIRECTORY_MAX_DEPTH, MAX_BUCKET_SIZE)
	if err != nil {
		t.Fatal("failed to create table:", err)
	}
	return table
}

type directoryState struct {
	global  uint32
	locals  []uint32
	buckets []int64
}

// readDirectoryState snapshots the directory at the given header slot.
func readDirectoryState(t *testing.T, table *HashTable, directoryIdx uint32) directoryState {
	t.Helper()
	headerGuard, err := table.pool.FetchPageRead(table.headerPageId)
	if err != nil {
		t.Fatal("failed to fetch header:", err)
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	directoryPageId := header.GetDirectoryPageId(directoryIdx)
	if directoryPageId == INVALID_PAGE_ID {
		t.Fatalf("no directory at header slot %d", directoryIdx)
	}
	directoryGuard, err := table.pool.FetchPageRead(directoryPageId)
	if err != nil {
		t.Fatal("failed to fetch directory:", err)
	}
	defer directoryGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())
	state := directoryState{global: directory.GetGlobalDepth()}
	for i := uint32(0); i < directory.Size(); i++ {
		state.locals = append(state.locals, directory.GetLocalDepth(i))
		state.buckets = append(state.buckets, directory.GetBucketPageId(i))
	}
	return state
}

func insertAndCheck(t *testing.T, table *HashTable, key, value int64) {
	t.Helper()
	if !table.Insert(key, value, nil) {
		t.Fatalf("failed to insert (%d, %d)", key, value)
	}
}

func checkFound(t *testing.T, table *HashTable, key, want int64) {
	t.Helper()
	value, found := table.GetValue(key, nil)
	if !found {
		t.Errorf("GetValue(%d) found nothing, want %d", key, want)
		return
	}
	if value != want {
		t.Errorf("GetValue(%d) = %d, want %d", key, value, want)
	}
}

func checkAbsent(t *testing.T, table *HashTable, key int64) {
	t.Helper()
	if value, found := table.GetValue(key, nil); found {
		t.Errorf("GetValue(%d) = %d, want absent", key, value)
	}
}

func checkIntegrity(t *testing.T, table *HashTable) {
	t.Helper()
	if err := table.VerifyIntegrity(); err != nil {
		t.Error("integrity check failed:", err)
	}
}

// =====================================================================
// TESTS
// =====================================================================

// Keys 0b00, 0b01, 0b10, 0b11 with two-entry buckets: the first split is
// triggered by the third insert and raises the global depth to 1; the
// remaining keys spread across the two buckets.
func TestInsertSplitsFullBucket(t *testing.T) {
	table := setupSmallTable(t)

	for key := int64(0); key < 4; key++ {
		insertAndCheck(t, table, key, key*10)
	}
	state := readDirectoryState(t, table, 0)
	if state.global != 1 {
		t.Errorf("global depth = %d, want 1", state.global)
	}
	if state.buckets[0] == state.buckets[1] {
		t.Error("slots 0 and 1 should point at distinct buckets after the split")
	}
	for key := int64(0); key < 4; key++ {
		checkFound(t, table, key, key*10)
	}
	checkIntegrity(t, table)
}

// Keys 0 and 4 collide on every bit the directory can distinguish until
// depth 3, so inserting 2 forces two consecutive splits: the first leaves
// the new bucket empty and the old one still full.
func TestSplitRepeatsWhenEntriesCollide(t *testing.T) {
	table := setupSmallTable(t)

	insertAndCheck(t, table, 0, 100)
	insertAndCheck(t, table, 4, 104)
	insertAndCheck(t, table, 2, 102)

	state := readDirectoryState(t, table, 0)
	if state.global != 2 {
		t.Errorf("global depth = %d, want 2", state.global)
	}
	if state.locals[0] != 2 || state.locals[2] != 2 {
		t.Errorf("slots 0b00/0b10 have local depths %d/%d, want 2/2", state.locals[0], state.locals[2])
	}
	if state.locals[1] != 1 || state.locals[3] != 1 {
		t.Errorf("slots 0b01/0b11 have local depths %d/%d, want 1/1", state.locals[1], state.locals[3])
	}
	if state.buckets[1] != state.buckets[3] {
		t.Error("slots 0b01 and 0b11 should share a depth-1 bucket")
	}
	checkFound(t, table, 0, 100)
	checkFound(t, table, 4, 104)
	checkFound(t, table, 2, 102)
	checkIntegrity(t, table)
}

// Splitting cannot push a directory past its max depth: once the bucket
// holding keys 0 and 4 sits at local depth == global depth == max depth,
// another colliding insert must fail and leave the table untouched.
func TestInsertFailsAtMaxDirectoryDepth(t *testing.T) {
	table := setupSmallTable(t)

	insertAndCheck(t, table, 0, 100)
	insertAndCheck(t, table, 4, 104)
	insertAndCheck(t, table, 2, 102)
	before := readDirectoryState(t, table, 0)

	// Key 8 shares its low two bits with 0 and 4; the split it needs
	// would require depth 3.
	if table.Insert(8, 108, nil) {
		t.Fatal("insert requiring a split past max depth should fail")
	}
	after := readDirectoryState(t, table, 0)
	if after.global != before.global {
		t.Errorf("failed insert changed global depth from %d to %d", before.global, after.global)
	}
	checkFound(t, table, 0, 100)
	checkFound(t, table, 4, 104)
	checkFound(t, table, 2, 102)
	checkAbsent(t, table, 8)
	checkIntegrity(t, table)
}

// Removing the last entry of a bucket merges it with its split image, and
// a chain of merges lets the directory shrink back to depth 0.
func TestRemoveMergesAndShrinks(t *testing.T) {
	table := setupSmallTable(t)

	insertAndCheck(t, table, 0, 100)
	insertAndCheck(t, table, 4, 104)
	insertAndCheck(t, table, 2, 102)

	if !table.Remove(2, nil) {
		t.Fatal("failed to remove key 2")
	}
	state := readDirectoryState(t, table, 0)
	if state.global != 0 {
		t.Errorf("global depth = %d after merges, want 0", state.global)
	}
	checkFound(t, table, 0, 100)
	checkFound(t, table, 4, 104)
	checkAbsent(t, table, 2)
	checkIntegrity(t, table)
}

// A merge stops when both the emptied bucket and its split image hold
// entries; here removing one key of two leaves a non-empty bucket, so
// nothing merges.
func TestRemoveWithoutEmptyingKeepsDepth(t *testing.T) {
	table := setupSmallTable(t)

	for key := int64(0); key < 4; key++ {
		insertAndCheck(t, table, key, key)
	}
	if !table.Remove(3, nil) {
		t.Fatal("failed to remove key 3")
	}
	state := readDirectoryState(t, table, 0)
	if state.global != 1 {
		t.Errorf("global depth = %d, want 1", state.global)
	}
	checkFound(t, table, 1, 1)
	checkAbsent(t, table, 3)
	checkIntegrity(t, table)
}

// Inserting one key and removing it returns the directory to depth 0 with
// a single empty bucket.
func TestInsertThenRemoveRestoresEmptyTable(t *testing.T) {
	table := setupSmallTable(t)

	insertAndCheck(t, table, 5, 55)
	if !table.Remove(5, nil) {
		t.Fatal("failed to remove key 5")
	}
	state := readDirectoryState(t, table, 0)
	if state.global != 0 {
		t.Errorf("global depth = %d, want 0", state.global)
	}
	checkAbsent(t, table, 5)
	checkIntegrity(t, table)
}

// Deleting every inserted key shrinks the directory back to depth 0.
func TestDeleteAllShrinksToDepthZero(t *testing.T) {
	table := setupSmallTable(t)

	for key := int64(0); key < 4; key++ {
		insertAndCheck(t, table, key, key)
	}
	for key := int64(0); key < 4; key++ {
		if !table.Remove(key, nil) {
			t.Fatalf("failed to remove key %d", key)
		}
	}
	state := readDirectoryState(t, table, 0)
	if state.global != 0 {
		t.Errorf("global depth = %d after deleting everything, want 0", state.global)
	}
	checkIntegrity(t, table)
}

func TestDuplicateInsertRejected(t *testing.T) {
	table := setupSmallTable(t)

	if !table.Insert(1, 11, nil) {
		t.Fatal("first insert failed")
	}
	if table.Insert(1, 22, nil) {
		t.Error("second insert of the same key should fail")
	}
	checkFound(t, table, 1, 11)
	checkIntegrity(t, table)
}

func TestRemoveAbsentKey(t *testing.T) {
	table := setupSmallTable(t)

	// No directory exists yet for this key's prefix.
	if table.Remove(1, nil) {
		t.Error("remove on an empty table should fail")
	}
	insertAndCheck(t, table, 1, 11)
	if table.Remove(2, nil) {
		t.Error("remove of an absent key should fail")
	}
	checkFound(t, table, 1, 11)
}

func TestLookupIdempotent(t *testing.T) {
	table := setupSmallTable(t)
	insertAndCheck(t, table, 3, 33)

	for i := 0; i < 3; i++ {
		checkFound(t, table, 3, 33)
	}
}

// Inserting and removing a key leaves the directory observationally where
// it started.
func TestInsertRemovePairPreservesShape(t *testing.T) {
	table := setupSmallTable(t)
	insertAndCheck(t, table, 0, 100)
	before := readDirectoryState(t, table, 0)

	insertAndCheck(t, table, 1, 101)
	if !table.Remove(1, nil) {
		t.Fatal("failed to remove key 1")
	}
	after := readDirectoryState(t, table, 0)
	if after.global != before.global {
		t.Errorf("global depth changed from %d to %d", before.global, after.global)
	}
	checkFound(t, table, 0, 100)
	checkAbsent(t, table, 1)
	checkIntegrity(t, table)
}

// A header with depth > 0 lazily allocates one directory per digest
// prefix.
func TestHeaderPopulatesDirectoriesLazily(t *testing.T) {
	table, err := NewHashTable("prefixes", newTestPool(t), DefaultComparator, identityHash, 2, 2, 2)
	if err != nil {
		t.Fatal("failed to create table:", err)
	}

	// Top two digest bits 00, 01, 10, 11.
	keys := []int64{0x00000001, 0x40000002, 0x80000003, 0xC0000004}
	for i, key := range keys {
		insertAndCheck(t, table, key, int64(i))
	}
	for i, key := range keys {
		checkFound(t, table, key, int64(i))
	}
	for idx := uint32(0); idx < 4; idx++ {
		state := readDirectoryState(t, table, idx)
		if state.global != 0 {
			t.Errorf("directory %d: global depth = %d, want 0", idx, state.global)
		}
	}
	checkIntegrity(t, table)
}

func TestManyKeysWithRealHash(t *testing.T) {
	table := setupDefaultTable(t)

	for key := int64(0); key < 64; key++ {
		insertAndCheck(t, table, key, key*7)
	}
	for key := int64(0); key < 64; key++ {
		checkFound(t, table, key, key*7)
	}
	checkIntegrity(t, table)
}

// Two goroutines insert disjoint key ranges; both finish, every key is
// found and the invariants hold.
func TestConcurrentDisjointInserts(t *testing.T) {
	table := setupDefaultTable(t)

	const perWorker = 2000
	var eg errgroup.Group
	for w := int64(0); w < 2; w++ {
		base := w * perWorker
		eg.Go(func() error {
			for i := int64(0); i < perWorker; i++ {
				if !table.Insert(base+i, base+i, nil) {
					return errInsertFailed
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	for key := int64(0); key < 2*perWorker; key++ {
		checkFound(t, table, key, key)
	}
	checkIntegrity(t, table)
}

// Concurrent readers and writers on overlapping keys must not deadlock or
// observe torn state.
func TestConcurrentMixedWorkload(t *testing.T) {
	table := setupDefaultTable(t)
	for key := int64(0); key < 512; key++ {
		insertAndCheck(t, table, key, key)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		for key := int64(512); key < 1024; key++ {
			if !table.Insert(key, key, nil) {
				return errInsertFailed
			}
		}
		return nil
	})
	eg.Go(func() error {
		for key := int64(0); key < 512; key++ {
			if !table.Remove(key, nil) {
				return errRemoveFailed
			}
		}
		return nil
	})
	eg.Go(func() error {
		for key := int64(0); key < 1024; key++ {
			table.GetValue(key, nil)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	for key := int64(0); key < 512; key++ {
		checkAbsent(t, table, key)
	}
	for key := int64(512); key < 1024; key++ {
		checkFound(t, table, key, key)
	}
	checkIntegrity(t, table)
}
