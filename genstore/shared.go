package genstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/depcache/store"
)

// Backend is the slice of the backing store a StoreGenStore needs.
type Backend interface {
	store.KV
	store.Counters
}

// StoreGenStore shares generations across processes through the backing store.
// Fresh generations are drawn from one namespace-wide sequence counter.
type StoreGenStore struct {
	st  Backend
	seq string // sequence counter key
}

var _ GenStore = (*StoreGenStore)(nil)

// New creates a generation store whose sequence lives at "<namespace>:genseq".
func New(st Backend, namespace string) *StoreGenStore {
	seq := "genseq"
	if namespace != "" {
		seq = namespace + ":" + seq
	}
	return &StoreGenStore{st: st, seq: seq}
}

// Snapshot returns the current generation.
// Missing keys are treated as generation 0.
func (s *StoreGenStore) Snapshot(ctx context.Context, markerKey string) (uint64, error) {
	b, ok, err := s.st.Get(ctx, markerKey)
	if err != nil || !ok {
		return 0, err
	}
	u, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore parse %s: %w", markerKey, err)
	}
	return u, nil
}

// Bump takes the next sequence value and stores it at markerKey with ttl
// (ttl <= 0 => no expiry).
func (s *StoreGenStore) Bump(ctx context.Context, markerKey string, ttl time.Duration) (uint64, error) {
	next, err := s.st.Incr(ctx, s.seq, 0)
	if err != nil {
		return 0, err
	}
	gen := uint64(next)
	if err := s.st.Set(ctx, markerKey, []byte(strconv.FormatUint(gen, 10)), ttl); err != nil {
		return 0, err
	}
	return gen, nil
}

// Close is a no-op; the backing store is owned by the caller.
func (s *StoreGenStore) Close(context.Context) error { return nil }
