package depcache

import (
	"context"
	"fmt"

	c "github.com/unkn0wn-root/depcache/codec"
)

// PageLoader reads take source items starting at offset skip.
type PageLoader[V any] func(ctx context.Context, skip, take int) ([]V, error)

// List caches a source sequence as a store list that grows on demand: the
// first read loads max(InitialPageSize, skip+take) items, later reads past the
// end append at least PageSize more.
type List[V any] struct {
	strategy
	codec c.Codec[V]
}

// Key returns the storage key used for suffix in ctx.
func (l *List[V]) Key(ctx context.Context, suffix string) string { return l.key(ctx, suffix) }

// GetOrLoad returns items [skip, skip+take) of the list, filling it from load
// as needed. Undecodable items are dropped.
func (l *List[V]) GetOrLoad(ctx context.Context, suffix string, load PageLoader[V], skip, take int) ([]V, error) {
	if load == nil {
		return nil, invalidf("nil loader for %q", suffix)
	}
	if skip < 0 || take <= 0 {
		return []V{}, nil
	}
	key := l.key(ctx, suffix)

	var n int
	exists, err := l.st.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		ln, err := l.st.LLen(ctx, key)
		if err != nil {
			return nil, err
		}
		n = int(ln)
		if l.d.ReloadInitial && n == l.d.InitialPageSize {
			l.log.Info("reloading initial list page", Fields{"key": key})
			if _, err := l.st.Del(ctx, key); err != nil {
				return nil, err
			}
			exists = false
		}
	}

	if !exists {
		if err := l.fillInitial(ctx, key, load, max(l.d.InitialPageSize, skip+take)); err != nil {
			return nil, err
		}
	} else if need := skip + take; need > n {
		page, err := load(ctx, n, max(need-n, l.d.PageSize))
		if err != nil {
			return nil, err
		}
		if err := l.push(ctx, key, page); err != nil {
			return nil, err
		}
	}

	raw, err := l.st.LRange(ctx, key, int64(skip), int64(skip+take-1))
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(raw))
	for _, b := range raw {
		v, err := l.codec.Decode(b)
		if err != nil {
			l.hooks.DecodeDropped(key, "value_decode")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Reset drops the list so the next read reloads it.
func (l *List[V]) Reset(ctx context.Context, suffix string) error {
	_, err := l.st.Del(ctx, l.key(ctx, suffix))
	return err
}

func (l *List[V]) fillInitial(ctx context.Context, key string, load PageLoader[V], size int) error {
	page, err := load(ctx, 0, size)
	if err != nil {
		return err
	}
	if err := l.push(ctx, key, page); err != nil {
		return err
	}
	if err := l.st.Expire(ctx, key, l.ttl()); err != nil {
		return err
	}
	return l.track(ctx, key)
}

func (l *List[V]) push(ctx context.Context, key string, page []V) error {
	vals := make([][]byte, 0, len(page))
	for i, v := range page {
		b, err := l.codec.Encode(v)
		if err != nil {
			return fmt.Errorf("depcache: encode item %d of %q: %w", i, key, err)
		}
		vals = append(vals, b)
	}
	return l.st.RPush(ctx, key, vals...)
}
