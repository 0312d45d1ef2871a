package depcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/internal/util"
	"github.com/unkn0wn-root/depcache/store"
)

// strategy carries what every bound cache shares: its descriptor, key layout
// and dependency tracking.
type strategy struct {
	d       Descriptor
	ns      string
	st      store.Store
	tracker *Tracker
	log     Logger
	hooks   Hooks
}

// key builds <ns>:[v<N>:]<base>[:<suffix>], scoped to the ctx group when the
// strategy has user dependencies.
func (s *strategy) key(ctx context.Context, suffix string) string {
	base := s.d.BaseKey
	if suffix != "" {
		base += ":" + suffix
	}
	k := util.Namespaced(s.ns, util.Versioned(s.d.Version, base))
	if len(s.d.UserDependencies) > 0 {
		if g, ok := GroupFrom(ctx); ok {
			k = util.GroupScoped(k, g)
		}
	}
	return k
}

// track registers key under the descriptor dependencies.
func (s *strategy) track(ctx context.Context, key string) error {
	if len(s.d.Dependencies) > 0 {
		if err := s.tracker.Track(ctx, key, s.d.Dependencies...); err != nil {
			return err
		}
	}
	if len(s.d.UserDependencies) > 0 {
		if g, ok := GroupFrom(ctx); ok {
			return s.tracker.TrackUser(ctx, g, key, s.d.UserDependencies...)
		}
	}
	return nil
}

func (s *strategy) ttl() time.Duration { return util.Spread(s.d.TTL) }

// valueCache stores one V per key either in the backing store (remote) or in
// the local tier (local, both). With buffered set, local misses are filled
// from a shared store buffer that only one instance loads at a time.
type valueCache[V any] struct {
	strategy
	codec    c.Codec[V]
	local    *localTier
	buffered bool
	lockTTL  time.Duration
	poll     time.Duration
	polls    int
	sf       singleflight.Group
}

func (vc *valueCache[V]) get(ctx context.Context, key string) (v V, ok bool, err error) {
	if vc.local != nil {
		payload, ok := vc.local.get(ctx, key)
		if !ok {
			return v, false, nil
		}
		if v, err = vc.codec.Decode(payload); err != nil {
			vc.local.heal(ctx, key, "value_decode")
			var zero V
			return zero, false, nil
		}
		return v, true, nil
	}

	b, ok, err := vc.st.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if v, err = vc.codec.Decode(b); err != nil {
		vc.hooks.DecodeDropped(key, "value_decode")
		vc.log.Debug("dropped undecodable entry", Fields{"key": key, "err": err})
		_, _ = vc.st.Del(ctx, key)
		var zero V
		return zero, false, nil
	}
	return v, true, nil
}

func (vc *valueCache[V]) getOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if load == nil {
		var zero V
		return zero, invalidf("nil loader for %q", key)
	}
	if v, ok, err := vc.get(ctx, key); err != nil || ok {
		return v, err
	}

	res, err, _ := vc.sf.Do(key, func() (any, error) {
		if v, ok, err := vc.get(ctx, key); err != nil || ok {
			return v, err
		}
		if vc.buffered {
			v, payload, err := vc.loadBuffer(ctx, key, load)
			if err != nil {
				return v, err
			}
			return v, vc.putPayload(ctx, key, payload)
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		return v, vc.put(ctx, key, v)
	})
	v, _ := res.(V)
	return v, err
}

func (vc *valueCache[V]) put(ctx context.Context, key string, v V) error {
	b, err := vc.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("depcache: encode %q: %w", key, err)
	}
	return vc.putPayload(ctx, key, b)
}

func (vc *valueCache[V]) putPayload(ctx context.Context, key string, b []byte) error {
	ttl := vc.ttl()
	if vc.local != nil {
		marker, err := vc.local.put(ctx, key, b, ttl)
		if err != nil {
			return err
		}
		return vc.track(ctx, marker)
	}
	if err := vc.st.Set(ctx, key, b, ttl); err != nil {
		return err
	}
	return vc.track(ctx, key)
}

// modify rewrites a cached value in place; ok=false when nothing is cached.
// Local copies are rewritten under their current generation only.
func (vc *valueCache[V]) modify(ctx context.Context, key string, fn func(V) (V, error)) (bool, error) {
	if fn == nil {
		return false, invalidf("nil modifier for %q", key)
	}
	v, ok, err := vc.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	nv, err := fn(v)
	if err != nil {
		return false, err
	}
	b, err := vc.codec.Encode(nv)
	if err != nil {
		return false, fmt.Errorf("depcache: encode %q: %w", key, err)
	}
	if vc.local != nil {
		return true, vc.local.replace(ctx, key, b, vc.ttl())
	}
	return true, vc.st.Set(ctx, key, b, vc.ttl())
}

// remove drops key on every instance: the remote value and every marker.
func (vc *valueCache[V]) remove(ctx context.Context, key string) error {
	if vc.local != nil {
		_ = vc.local.p.Del(ctx, key)
	}
	var errs []error
	if _, err := vc.st.Del(ctx, key, util.DataKey(key)); err != nil {
		errs = append(errs, err)
	}
	if _, err := vc.st.DelByPrefix(ctx, key+"/"); err != nil {
		errs = append(errs, err)
	}
	vc.log.Info("cache entry removed", Fields{"key": key})
	return errors.Join(errs...)
}

// loadBuffer returns the shared buffer of key, loading it under a store lock
// when absent. Instances that lose the lock poll until the buffer appears.
func (vc *valueCache[V]) loadBuffer(ctx context.Context, key string, load func(context.Context) (V, error)) (V, []byte, error) {
	var zero V
	dataKey, lockKey := util.DataKey(key), util.LockKey(key)

	for i := 0; i <= vc.polls; i++ {
		if v, b, ok := vc.readBuffer(ctx, dataKey); ok {
			return v, b, nil
		}

		locked, err := vc.st.SetNX(ctx, lockKey, []byte(vc.local.instance), vc.lockTTL)
		if err != nil {
			return zero, nil, err
		}
		if locked {
			v, b, err := vc.fillBuffer(ctx, dataKey, load)
			if _, derr := vc.st.Del(ctx, lockKey); derr != nil {
				vc.log.Warn("buffer lock release failed", Fields{"key": lockKey, "err": derr})
			}
			return v, b, err
		}

		if err := sleepCtx(ctx, vc.poll); err != nil {
			return zero, nil, err
		}
	}
	return zero, nil, fmt.Errorf("depcache: buffer %q not filled after %d polls", dataKey, vc.polls)
}

func (vc *valueCache[V]) fillBuffer(ctx context.Context, dataKey string, load func(context.Context) (V, error)) (V, []byte, error) {
	if v, b, ok := vc.readBuffer(ctx, dataKey); ok {
		return v, b, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, nil, err
	}
	b, err := vc.codec.Encode(v)
	if err != nil {
		return v, nil, fmt.Errorf("depcache: encode %q: %w", dataKey, err)
	}
	if err := vc.st.Set(ctx, dataKey, b, vc.ttl()); err != nil {
		return v, nil, err
	}
	return v, b, vc.track(ctx, dataKey)
}

func (vc *valueCache[V]) readBuffer(ctx context.Context, dataKey string) (V, []byte, bool) {
	var zero V
	b, ok, err := vc.st.Get(ctx, dataKey)
	if err != nil || !ok {
		return zero, nil, false
	}
	v, err := vc.codec.Decode(b)
	if err != nil {
		vc.hooks.DecodeDropped(dataKey, "value_decode")
		vc.log.Warn("dropped undecodable buffer", Fields{"key": dataKey, "err": err})
		_, _ = vc.st.Del(ctx, dataKey)
		return zero, nil, false
	}
	return v, b, true
}
