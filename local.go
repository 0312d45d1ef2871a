package depcache

import (
	"context"
	"fmt"
	"time"

	gen "github.com/unkn0wn-root/depcache/genstore"
	"github.com/unkn0wn-root/depcache/internal/util"
	"github.com/unkn0wn-root/depcache/internal/wire"
	pr "github.com/unkn0wn-root/depcache/provider"
	"github.com/unkn0wn-root/depcache/provider/bigcache"
	"github.com/unkn0wn-root/depcache/provider/lru"
	"github.com/unkn0wn-root/depcache/provider/ristretto"
)

// LocalFactory builds the in-process tier of one local or both strategy.
type LocalFactory func(d Descriptor) (pr.Provider, error)

// DefaultLocal is an expirable LRU of 10k entries living for the strategy TTL.
func DefaultLocal(d Descriptor) (pr.Provider, error) {
	return lru.New(lru.Config{Size: defaultLocalSize, TTL: coalesce(d.TTL, defaultLocalTTL)})
}

// LocalByName returns the local tier factory for "lru" (or ""), "ristretto"
// (cost-bounded by framed entry size, 64 MiB) or "bigcache" (sharded, entries
// live for the strategy TTL).
func LocalByName(name string) (LocalFactory, error) {
	switch name {
	case "", "lru":
		return DefaultLocal, nil
	case "ristretto":
		return func(Descriptor) (pr.Provider, error) {
			return ristretto.New(ristretto.Config{
				NumCounters: 10 * defaultLocalSize,
				MaxCost:     64 << 20,
				BufferItems: 64,
			})
		}, nil
	case "bigcache":
		return func(d Descriptor) (pr.Provider, error) {
			return bigcache.New(bigcache.Config{
				LifeWindow:         coalesce(d.TTL, defaultLocalTTL),
				MaxEntriesInWindow: defaultLocalSize,
			})
		}, nil
	default:
		return nil, fmt.Errorf("depcache: unknown local tier %q", name)
	}
}

// localTier keeps framed copies in process memory. A copy is valid only while
// this instance's marker in the shared store still carries the generation the
// copy was framed with; resets delete the marker.
type localTier struct {
	p        pr.Provider
	gens     gen.GenStore
	instance string
	log      Logger
	hooks    Hooks
}

func (l *localTier) marker(key string) string { return util.MarkerKey(key, l.instance) }

// get returns the payload of a valid copy. Corrupt or stale copies are
// deleted; a marker read error leaves the copy in place and reports a miss.
func (l *localTier) get(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := l.p.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	g, payload, err := wire.Decode(raw)
	if err != nil {
		l.heal(ctx, key, "corrupt")
		return nil, false
	}
	cur, err := l.gens.Snapshot(ctx, l.marker(key))
	if err != nil {
		l.hooks.LocalReload(key, "marker_error")
		l.log.Warn("local marker read failed", Fields{"key": key, "err": err})
		return nil, false
	}
	if cur == 0 || cur != g {
		l.heal(ctx, key, "gen_mismatch")
		return nil, false
	}
	return payload, true
}

// put draws a fresh generation for the marker and stores payload framed with
// it. It returns the marker key so callers can track it.
func (l *localTier) put(ctx context.Context, key string, payload []byte, ttl time.Duration) (string, error) {
	m := l.marker(key)
	g, err := l.gens.Bump(ctx, m, ttl)
	if err != nil {
		return "", err
	}
	framed := wire.Encode(g, payload)
	if ok, err := l.p.Set(ctx, key, framed, int64(len(framed)), ttl); err != nil || !ok {
		l.log.Debug("local tier rejected entry", Fields{"key": key, "err": err})
	}
	return m, nil
}

// replace rewrites the payload of a valid copy under its current generation.
func (l *localTier) replace(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	cur, err := l.gens.Snapshot(ctx, l.marker(key))
	if err != nil || cur == 0 {
		return err
	}
	framed := wire.Encode(cur, payload)
	_, err = l.p.Set(ctx, key, framed, int64(len(framed)), ttl)
	return err
}

func (l *localTier) heal(ctx context.Context, key, reason string) {
	_ = l.p.Del(ctx, key)
	l.hooks.LocalReload(key, reason)
}
