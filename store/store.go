// Package store defines the backing store contract used by depcache.
//
// The store is the single source of truth for everything depcache keeps:
// blobs, sorted sets, dependency sets, counters and generation markers.
// depcache itself holds no authoritative state, so any number of processes may
// share one store. Implementations MUST be safe for concurrent use and MUST
// return exactly the bytes previously written for a key or member.
//
// Misses are never errors: Get reports ok=false, range reads return an empty
// slice. Errors are reserved for transport/server failures.
package store

import (
	"context"
	"math"
	"time"
)

const (
	// MinScore and MaxScore are the open bounds of a score range (-inf / +inf).
	MinScore int64 = math.MinInt64
	MaxScore int64 = math.MaxInt64
)

// ZMember is one sorted-set entry.
type ZMember struct {
	Score  int64
	Member []byte
}

// KV is plain key/value access plus key management.
type KV interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Del removes keys and returns how many existed. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) (int64, error)
	// DelByPrefix removes every key starting with prefix.
	DelByPrefix(ctx context.Context, prefix string) (int64, error)
	// Scan returns every key starting with prefix ("" => all keys).
	Scan(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Expire sets a TTL on an existing key; missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// KeyType returns the store type name of key ("none" when absent).
	KeyType(ctx context.Context, key string) (string, error)
}

// Counters are atomic integer keys.
type Counters interface {
	// Incr increments key and applies ttlOnCreate only when this call created it.
	Incr(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error)
	// IncrExpire increments key and (re)sets its TTL in one round-trip.
	IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// GetInt reads a counter; missing => 0.
	GetInt(ctx context.Context, key string) (int64, error)
}

// SortedSets is the score-ordered collection API.
type SortedSets interface {
	// ZAdd upserts members. Zero members is a no-op.
	ZAdd(ctx context.Context, key string, members ...ZMember) error
	// ZRangeByScoreDesc returns members with low <= score <= high ordered by
	// descending score, skipping skip and returning at most take (take < 0 => all).
	ZRangeByScoreDesc(ctx context.Context, key string, low, high int64, skip, take int) ([]ZMember, error)
	// ZRemRangeByScore removes members with low <= score <= high.
	ZRemRangeByScore(ctx context.Context, key string, low, high int64) (int64, error)
}

// Sets is the unordered set API used for dependency tracking.
type Sets interface {
	SAdd(ctx context.Context, key string, members ...string) error
	// SScan iterates the whole set.
	SScan(ctx context.Context, key string) ([]string, error)
}

// Hashes stores field maps.
type Hashes interface {
	HSet(ctx context.Context, key string, fields map[string][]byte) error
	// HGetAll returns an empty map when key is absent.
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	// HMGet returns one slot per field; missing fields are nil.
	HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error)
	HIncrBy(ctx context.Context, key, field string, by int64) (int64, error)
}

// Lists stores append-only sequences.
type Lists interface {
	// RPush appends values. Zero values is a no-op.
	RPush(ctx context.Context, key string, values ...[]byte) error
	// LRange returns elements start..stop inclusive.
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// Store is the full backing store client.
type Store interface {
	KV
	Counters
	SortedSets
	Sets
	Hashes
	Lists

	// Close releases resources.
	Close(ctx context.Context) error
}
