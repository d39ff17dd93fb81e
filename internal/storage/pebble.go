// Package storage is the Pebble backend of the local ledger. Column
// families are simulated with key prefixes; the only families are the
// memo log (keyed by big-endian sequence number) and its metadata.
package storage

import (
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// Key prefixes (simulating column families)
const (
	PrefixMemos = "mem:"
	PrefixMeta  = "met:"
)

// Column family names
const (
	CFMemos = "memos"
	CFMeta  = "meta"
)

var cfPrefixes = map[string]string{
	CFMemos: PrefixMemos,
	CFMeta:  PrefixMeta,
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens the database at path, creating the directory if
// needed.
func NewPebbleDB(path string) (*PebbleDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20),
		MaxOpenFiles: 100,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleDB{db: db}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

func (p *PebbleDB) prefixKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}
	return append([]byte(prefix), key...), nil
}

// Put stores a key-value pair in the given column family, synced; a
// memo must survive a crash once its signature has been handed out.
func (p *PebbleDB) Put(cf string, key, value []byte) error {
	k, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Set(k, value, pebble.Sync)
}

// Get returns the value stored under key, or (nil, nil) when absent.
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	k, err := p.prefixKey(cf, key)
	if err != nil {
		return nil, err
	}

	val, closer, err := p.db.Get(k)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Pebble owns val until the closer is released; hand back a copy.
	out := append([]byte(nil), val...)
	closer.Close()
	return out, nil
}

// ScanAll returns every value in a column family in key order. Memo
// keys are big-endian sequence numbers, so the memo log comes back
// oldest first; callers wanting newest-first walk it backwards. The
// log is bounded by the anchor cadence, so loading it whole is fine.
func (p *PebbleDB) ScanAll(cf string) ([][]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	lower := []byte(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound(lower),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Value()...))
	}
	return out, iter.Error()
}

// keyUpperBound returns the smallest key sorting after every key that
// starts with prefix, or nil when no such key exists (all-0xff prefix).
func keyUpperBound(prefix []byte) []byte {
	b := append([]byte(nil), prefix...)
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return b[:i+1]
		}
	}
	return nil
}
