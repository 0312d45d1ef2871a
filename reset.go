package depcache

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/depcache/store"
)

const resetParallelism = 4

// Resetter is the single invalidation entry point: prefix resets and
// dependency resets. Both are no-ops when nothing is cached.
type Resetter struct {
	st      store.KV
	tracker *Tracker
	log     Logger
}

func NewResetter(st store.KV, tracker *Tracker, log Logger) *Resetter {
	if log == nil {
		log = NopLogger{}
	}
	return &Resetter{st: st, tracker: tracker, log: log}
}

// ResetKeys deletes every key starting with any of prefixes and returns how
// many were removed. A trailing "*" on a prefix is ignored. Empty prefixes
// are rejected; use ResetAll to clear everything.
func (r *Resetter) ResetKeys(ctx context.Context, prefixes ...string) (int64, error) {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimRight(p, "*")
		if strings.TrimSpace(p) == "" {
			return 0, invalidf("empty reset prefix")
		}
		clean = append(clean, p)
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resetParallelism)
	for _, p := range clean {
		g.Go(func() error {
			n, err := r.st.DelByPrefix(gctx, p)
			total.Add(n)
			if err != nil {
				return err
			}
			r.log.Info("cache prefix reset", Fields{"prefix": p, "deleted": n})
			return nil
		})
	}
	err := g.Wait()
	return total.Load(), err
}

// ResetOnDependencyChange invalidates everything derived from typ: the global
// set, plus the set of group when group is non-nil.
func (r *Resetter) ResetOnDependencyChange(ctx context.Context, typ EntityType, group *int64) error {
	if group == nil {
		return r.tracker.Reset(ctx, typ)
	}
	return r.tracker.ResetBoth(ctx, typ, *group)
}

// ResetAll deletes every key in the store except those containing any of keep.
func (r *Resetter) ResetAll(ctx context.Context, keep ...string) (int64, error) {
	keys, err := r.st.Scan(ctx, "")
	if err != nil {
		return 0, err
	}
	doomed := make([]string, 0, len(keys))
	for _, k := range keys {
		if !containsAny(k, keep) {
			doomed = append(doomed, k)
		}
	}

	var deleted int64
	for start := 0; start < len(doomed); start += 100 {
		end := min(start+100, len(doomed))
		n, err := r.st.Del(ctx, doomed[start:end]...)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	r.log.Info("cache cleared", Fields{"deleted": deleted, "kept": len(keys) - len(doomed)})
	return deleted, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
