// Package raddb implements the encrypted single-file key-value store backing
// the directory. The whole keyspace lives in memory behind an RWMutex and is
// persisted as one AES-256-GCM sealed snapshot:
//
//	[12-byte nonce][ciphertext of the snapshot encoding]
//
// A fresh random nonce is drawn for every flush. Snapshots are written to a
// temporary sibling and renamed into place so a crash mid-write never leaves
// a torn file behind.
package raddb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const (
	// KeySize is the master key length in bytes (AES-256).
	KeySize = 32

	// nonceSize is the AES-GCM nonce length prepended to the file.
	nonceSize = 12
)

var (
	// ErrDecryption indicates the snapshot could not be opened with the
	// supplied master key. Either the key is wrong or the file was tampered
	// with; AES-GCM cannot distinguish the two.
	ErrDecryption = errors.New("raddb: decryption failed")

	// ErrEncryption indicates sealing a snapshot failed.
	ErrEncryption = errors.New("raddb: encryption failed")

	// ErrInvalidKey indicates a master key of the wrong length.
	ErrInvalidKey = errors.New("raddb: invalid key length")

	// ErrCorruptFile indicates the database file is structurally invalid
	// (shorter than a nonce, or a malformed snapshot after decryption).
	ErrCorruptFile = errors.New("raddb: corrupt database file")
)

// MasterKey is the 256-bit key sealing the database file.
type MasterKey = [KeySize]byte

// DB is an encrypted embedded key-value store. All operations are safe for
// concurrent use. Values are opaque byte slices; callers own serialization.
type DB struct {
	path string
	aead cipher.AEAD

	mu    sync.RWMutex
	cache map[string][]byte

	// flushObserver, when set, receives the duration of each successful
	// flush. Set once before the store is shared.
	flushObserver func(time.Duration)
}

// SetFlushObserver registers a callback receiving the duration of every
// successful flush. Pass nil to disable.
func (db *DB) SetFlushObserver(fn func(time.Duration)) {
	db.mu.Lock()
	db.flushObserver = fn
	db.mu.Unlock()
}

// Open opens (or creates) the database at path with the given master key.
// A missing or empty file yields an empty store; an existing file is
// decrypted and loaded into the cache.
func Open(path string, key MasterKey) (*DB, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("raddb: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("raddb: init GCM: %w", err)
	}

	db := &DB{
		path:  path,
		aead:  aead,
		cache: make(map[string][]byte),
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// GenerateKey returns a fresh random master key. The caller must persist it;
// a lost key makes the database unrecoverable.
func GenerateKey() MasterKey {
	var key MasterKey
	if _, err := rand.Read(key[:]); err != nil {
		panic(fmt.Sprintf("raddb: entropy source failed: %v", err))
	}
	return key
}

// ParseKeyHex decodes a hex-encoded master key. Returns ErrInvalidKey if the
// input does not decode to exactly KeySize bytes.
func ParseKeyHex(s string) (MasterKey, error) {
	var key MasterKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return key, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	copy(key[:], raw)
	return key, nil
}

// load reads and decrypts the snapshot file into the cache.
func (db *DB) load() error {
	encrypted, err := os.ReadFile(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no file yet, empty store
		}
		return fmt.Errorf("raddb: read %s: %w", db.path, err)
	}

	if len(encrypted) == 0 {
		return nil
	}
	if len(encrypted) < nonceSize {
		return fmt.Errorf("%w: file shorter than nonce (%d bytes)", ErrCorruptFile, len(encrypted))
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]
	plaintext, err := db.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrDecryption
	}

	data, err := decodeSnapshot(plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	db.mu.Lock()
	db.cache = data
	db.mu.Unlock()
	return nil
}

// Get returns a copy of the value stored under key.
func (db *DB) Get(key string) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, ok := db.cache[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

// Contains reports whether key is present.
func (db *DB) Contains(key string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.cache[key]
	return ok
}

// Len returns the number of stored keys.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.cache)
}

// Keys returns all keys currently in the store, in unspecified order.
func (db *DB) Keys() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keys := make([]string, 0, len(db.cache))
	for k := range db.cache {
		keys = append(keys, k)
	}
	return keys
}

// Set stores value under key and flushes the snapshot to disk.
func (db *DB) Set(key string, value []byte) error {
	db.mu.Lock()
	db.cache[key] = append([]byte(nil), value...)
	db.mu.Unlock()

	return db.Flush()
}

// SetAll stores every entry, then flushes once. Used by composite mutations
// that must not hit the disk per key.
func (db *DB) SetAll(entries map[string][]byte) error {
	db.mu.Lock()
	for k, v := range entries {
		db.cache[k] = append([]byte(nil), v...)
	}
	db.mu.Unlock()

	return db.Flush()
}

// Remove deletes key from the cache and reports whether it was present.
// The change is not persisted until the next Flush.
func (db *DB) Remove(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, ok := db.cache[key]
	delete(db.cache, key)
	return ok
}

// Clear empties the cache. The change is not persisted until the next Flush.
func (db *DB) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cache = make(map[string][]byte)
}

// Flush seals the current cache and atomically rewrites the database file.
// The snapshot is encoded and encrypted outside the write path of other
// readers: the lock is held only while the cache is serialized.
func (db *DB) Flush() error {
	start := time.Now()

	db.mu.RLock()
	plaintext := encodeSnapshot(db.cache)
	observer := db.flushObserver
	db.mu.RUnlock()

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: nonce generation: %v", ErrEncryption, err)
	}

	sealed := db.aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)

	if err := renameio.WriteFile(db.path, out, 0600); err != nil {
		return fmt.Errorf("raddb: write %s: %w", db.path, err)
	}

	if observer != nil {
		observer(time.Since(start))
	}
	return nil
}

// Close flushes the store one last time. The DB must not be used afterwards.
func (db *DB) Close() error {
	return db.Flush()
}
