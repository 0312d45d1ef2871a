package depcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/depcache/internal/util"
	"github.com/unkn0wn-root/depcache/store"
)

// DepStore is the part of the backing store the Tracker uses.
type DepStore interface {
	store.KV
	store.Sets
}

// Tracker keeps, per entity type, the set of cache keys derived from it and
// deletes them when the type changes. Sets may also be scoped to one group so
// a change for one user does not invalidate everyone's copy.
//
// The tracker holds no locks: SADD is idempotent and commutative, and deleting
// a key that is already gone is a no-op.
type Tracker struct {
	st    DepStore
	ns    string
	log   Logger
	hooks Hooks
}

func NewTracker(st DepStore, namespace string, log Logger, hooks Hooks) *Tracker {
	if log == nil {
		log = NopLogger{}
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Tracker{st: st, ns: namespace, log: log, hooks: hooks}
}

// DependencyKey is the key of the global dependency set of t.
func (t *Tracker) DependencyKey(typ EntityType) string {
	return util.DependencyKey(t.ns, string(typ))
}

// GroupDependencyKey is the key of the dependency set of t for one group.
func (t *Tracker) GroupDependencyKey(typ EntityType, group int64) string {
	return util.GroupDependencyKey(t.ns, string(typ), group)
}

// Track records that cacheKey was derived from each of types.
func (t *Tracker) Track(ctx context.Context, cacheKey string, types ...EntityType) error {
	if cacheKey == "" {
		return invalidf("empty cache key")
	}
	for _, typ := range types {
		if err := t.st.SAdd(ctx, t.DependencyKey(typ), cacheKey); err != nil {
			return fmt.Errorf("track %q on %s: %w", cacheKey, typ, err)
		}
	}
	return nil
}

// TrackUser is Track scoped to group.
func (t *Tracker) TrackUser(ctx context.Context, group int64, cacheKey string, types ...EntityType) error {
	if cacheKey == "" {
		return invalidf("empty cache key")
	}
	for _, typ := range types {
		if err := t.st.SAdd(ctx, t.GroupDependencyKey(typ, group), cacheKey); err != nil {
			return fmt.Errorf("track %q on %s (group %d): %w", cacheKey, typ, group, err)
		}
	}
	return nil
}

// Dependents lists the keys tracked for typ (group nil => global set).
func (t *Tracker) Dependents(ctx context.Context, typ EntityType, group *int64) ([]string, error) {
	if group != nil {
		return t.st.SScan(ctx, t.GroupDependencyKey(typ, *group))
	}
	return t.st.SScan(ctx, t.DependencyKey(typ))
}

// Reset deletes every key in the global dependency set of typ, then the set.
// Group-scoped sets are not touched.
func (t *Tracker) Reset(ctx context.Context, typ EntityType) error {
	return t.reset(ctx, t.DependencyKey(typ))
}

// ResetUser deletes every key in the dependency set of typ for group, then
// the set. The global set is not touched.
func (t *Tracker) ResetUser(ctx context.Context, typ EntityType, group int64) error {
	return t.reset(ctx, t.GroupDependencyKey(typ, group))
}

// ResetBoth resets the global and the group set of typ.
func (t *Tracker) ResetBoth(ctx context.Context, typ EntityType, group int64) error {
	return errors.Join(t.Reset(ctx, typ), t.ResetUser(ctx, typ, group))
}

// reset keeps the dependency set when any key failed to delete so a retry
// still finds it.
func (t *Tracker) reset(ctx context.Context, depKey string) error {
	keys, err := t.st.SScan(ctx, depKey)
	if err != nil {
		return fmt.Errorf("reset %q: %w", depKey, err)
	}

	var (
		errs    []error
		deleted int
	)
	for _, k := range keys {
		n, err := t.st.Del(ctx, k)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", k, err))
			continue
		}
		deleted += int(n)
		t.log.Info("cache key reset", Fields{"dependency": depKey, "key": k, "existed": n > 0})
	}
	if len(errs) > 0 {
		t.log.Error("dependency reset incomplete", Fields{"dependency": depKey, "failed": len(errs)})
		return &ResetError{DepKey: depKey, Errs: errs}
	}
	if _, err := t.st.Del(ctx, depKey); err != nil {
		return &ResetError{DepKey: depKey, Errs: []error{fmt.Errorf("delete set: %w", err)}}
	}
	t.hooks.DependencyReset(depKey, deleted)
	return nil
}
