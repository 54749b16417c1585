// Package database manages the named hash indexes living in a data folder.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"hashdb/pkg/hash"
)

var tableNamePattern = regexp.MustCompile(`^\w+$`)

// Database is a collection of named hash indexes backed by files in a
// common folder.
type Database struct {
	basepath string
	tables   map[string]*hash.HashIndex
	mtx      sync.Mutex
}

// Open readies a database over the given data folder, creating the folder
// if needed.
func Open(folder string) (*Database, error) {
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	if err := os.MkdirAll(folder, 0775); err != nil {
		return nil, err
	}
	return &Database{
		basepath: folder,
		tables:   make(map[string]*hash.HashIndex),
	}, nil
}

// GetBasePath returns the data folder this database lives in.
func (db *Database) GetBasePath() string {
	return db.basepath
}

// Close closes every open index, reporting the first error encountered.
func (db *Database) Close() (err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	for _, table := range db.tables {
		curErr := table.Close()
		if err == nil {
			err = curErr
		}
	}
	db.tables = make(map[string]*hash.HashIndex)
	return err
}

// CreateTable creates and opens a new index with the given name.
func (db *Database) CreateTable(name string) (*hash.HashIndex, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if !tableNamePattern.MatchString(name) {
		return nil, errors.New("table name must be alphanumeric")
	}
	path := filepath.Join(db.basepath, name)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.New("table already exists")
	}
	index, err := hash.OpenIndex(path)
	if err != nil {
		return nil, err
	}
	db.tables[name] = index
	return index, nil
}

// GetTable returns the open index with the given name.
func (db *Database) GetTable(name string) (*hash.HashIndex, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	index, found := db.tables[name]
	if !found {
		return nil, fmt.Errorf("no table named %q", name)
	}
	return index, nil
}

// GetTables returns the names of all open indexes.
func (db *Database) GetTables() []string {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	return names
}
