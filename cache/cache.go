package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum length of a stored cache key. Longer keys are
// compacted by the KeyBuilder before they reach a Store.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilStore     = errors.New("cache: store is nil")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrNilEntry     = errors.New("cache: entry is nil")
	ErrNotFound     = errors.New("cache: entry not found")
	ErrStoreOpen    = errors.New("cache: store circuit is open")
	ErrStoreTimeout = errors.New("cache: store operation timed out")
	ErrInvalidTTL   = errors.New("cache: ttl must be positive unless ttl is ignored")
)

// Entry is the unit kept in a Store: the result of one successful call, the
// argument values as they stood after the call returned, and when it was taken.
//
// Entries are never mutated after they are written. A newer successful call
// replaces the whole entry.
type Entry struct {
	// Value is the return value of the call.
	Value any

	// Args holds one value per formal parameter, positionally.
	Args []any

	// CreatedAt is when the call completed.
	CreatedAt time.Time
}

// Store holds entries by key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: Read and Write must each observe or replace a whole entry.
// - Errors: Contains never errors; Read returns ErrNotFound on a miss.
type Store interface {
	// Contains reports whether an entry exists for key.
	Contains(ctx context.Context, key string) bool

	// Read returns the entry stored under key.
	Read(ctx context.Context, key string) (*Entry, error)

	// Write stores entry under key, replacing any previous entry.
	Write(ctx context.Context, key string, entry *Entry) error
}

// ValidateKey checks if a key is valid for storage.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
