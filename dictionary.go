package depcache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/depcache/internal/util"
)

// Dictionary caches one value per id under <base>::<id>, remote or local.
type Dictionary[ID comparable, V any] struct {
	vc *valueCache[V]
}

func (d *Dictionary[ID, V]) idKey(ctx context.Context, id ID) string {
	return util.DictKey(d.vc.key(ctx, ""), fmt.Sprint(id))
}

// GetOrLoad returns the cached value of id or loads and caches it.
func (d *Dictionary[ID, V]) GetOrLoad(ctx context.Context, id ID, load func(context.Context, ID) (V, error)) (V, error) {
	if load == nil {
		var zero V
		return zero, invalidf("nil loader for %v", id)
	}
	return d.vc.getOrLoad(ctx, d.idKey(ctx, id), func(ctx context.Context) (V, error) { return load(ctx, id) })
}

// GetMany returns the cached values of ids; missing ids are absent from the map.
func (d *Dictionary[ID, V]) GetMany(ctx context.Context, ids []ID) (map[ID]V, error) {
	out := make(map[ID]V, len(ids))
	for _, id := range ids {
		v, ok, err := d.vc.get(ctx, d.idKey(ctx, id))
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = v
		}
	}
	return out, nil
}

// PutMany caches every value of data.
func (d *Dictionary[ID, V]) PutMany(ctx context.Context, data map[ID]V) error {
	for id, v := range data {
		if err := d.vc.put(ctx, d.idKey(ctx, id), v); err != nil {
			return err
		}
	}
	return nil
}

// Modify rewrites the cached value of id; false when id is not cached.
func (d *Dictionary[ID, V]) Modify(ctx context.Context, id ID, fn func(V) (V, error)) (bool, error) {
	return d.vc.modify(ctx, d.idKey(ctx, id), fn)
}

// Remove drops id on every instance.
func (d *Dictionary[ID, V]) Remove(ctx context.Context, id ID) error {
	return d.vc.remove(ctx, d.idKey(ctx, id))
}
