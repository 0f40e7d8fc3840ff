// Package modcache is a content-addressed cache from raw contract bytecode
// to its decoded *wasm.Module, keyed by a blake2b hash of the bytecode the
// same way the teacher content-addresses state keys in pkg/staterepository.
// The executor consults it before decode+validate so identical bytecode
// (the common case: a contract invoked many times, or the same code deployed
// at several addresses) pays that cost once per process rather than once
// per invocation.
package modcache

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// Key is a blake2b-256 digest of a contract's raw bytecode.
type Key [32]byte

// KeyOf hashes code the same way MakePreimageKey hashes a preimage in the
// teacher's staterepository: content, not identity, names the entry.
func KeyOf(code []byte) Key {
	return blake2b.Sum256(code)
}

// Cache pairs an in-memory map (the fast path within one process) with an
// optional on-disk pebble store, so a decoded module survives a process
// restart without the caller ever needing to know whether a given lookup
// was served from memory or disk. A nil db makes Cache a pure in-memory
// cache, useful for tests that don't want a filesystem dependency.
type Cache struct {
	mu   sync.RWMutex
	hot  map[Key]*wasm.Module
	db   *pebble.DB
}

// Open creates a Cache backed by a pebble database at dir. Passing an empty
// dir yields an in-memory-only cache.
func Open(dir string) (*Cache, error) {
	c := &Cache{hot: make(map[Key]*wasm.Module)}
	if dir == "" {
		return c, nil
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errorsx.Wrap(errorsx.StatusInternalError, err, "modcache: open pebble store")
	}
	c.db = db
	return c, nil
}

// Close releases the on-disk store, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Lookup returns the decoded module for code's content hash, decoding and
// populating the cache on a miss. The returned *wasm.Module must be treated
// as read-only: it may be shared by concurrent invocations of the same
// bytecode.
func (c *Cache) Lookup(code []byte) (*wasm.Module, error) {
	key := KeyOf(code)

	c.mu.RLock()
	mod, ok := c.hot[key]
	c.mu.RUnlock()
	if ok {
		return mod, nil
	}

	if c.db != nil {
		if mod, err := c.loadDisk(key); err == nil && mod != nil {
			c.mu.Lock()
			c.hot[key] = mod
			c.mu.Unlock()
			return mod, nil
		}
	}

	mod, err := wasm.Decode(code)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.StatusContractValidationFailure, err, "modcache: decode failed")
	}

	c.mu.Lock()
	c.hot[key] = mod
	c.mu.Unlock()

	if c.db != nil {
		c.storeDisk(key, mod) // best-effort: a failed write only costs a future re-decode
	}

	return mod, nil
}

func (c *Cache) loadDisk(key Key) (*wasm.Module, error) {
	val, closer, err := c.db.Get(key[:])
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var mod wasm.Module
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&mod); err != nil {
		return nil, err
	}
	return &mod, nil
}

func (c *Cache) storeDisk(key Key, mod *wasm.Module) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(mod); err != nil {
		return
	}
	_ = c.db.Set(key[:], buf.Bytes(), pebble.Sync)
}
