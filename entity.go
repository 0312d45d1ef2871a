package depcache

import (
	"context"
	"reflect"
)

// EntityType names a kind of domain entity whose changes invalidate caches.
type EntityType string

// TypeOf derives an EntityType from T as "<pkgpath>.<name>" (pointers are
// dereferenced).
func TypeOf[T any]() EntityType {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return EntityType(t.String())
	}
	return EntityType(t.PkgPath() + "." + t.Name())
}

type groupKey struct{}

// WithGroup scopes ctx to a user/group. Strategies with user dependencies
// read it to pick per-group keys and dependency sets.
func WithGroup(ctx context.Context, group int64) context.Context {
	return context.WithValue(ctx, groupKey{}, group)
}

// GroupFrom returns the group set by WithGroup.
func GroupFrom(ctx context.Context) (int64, bool) {
	g, ok := ctx.Value(groupKey{}).(int64)
	return g, ok
}
