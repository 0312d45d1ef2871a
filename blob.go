package depcache

import "context"

// Blob caches one value per key. Remote blobs live in the backing store;
// local blobs live in process memory and are invalidated through per-instance
// markers; both-location blobs fill process memory from a shared store
// buffer loaded by a single instance at a time.
type Blob[V any] struct {
	vc *valueCache[V]
}

// Key returns the storage key used for suffix in ctx.
func (b *Blob[V]) Key(ctx context.Context, suffix string) string { return b.vc.key(ctx, suffix) }

// GetOrLoad returns the cached value or calls load once (per process) and
// caches its result. Loader errors are returned and nothing is cached.
func (b *Blob[V]) GetOrLoad(ctx context.Context, suffix string, load func(context.Context) (V, error)) (V, error) {
	return b.vc.getOrLoad(ctx, b.vc.key(ctx, suffix), load)
}

// TryGet returns the cached value without loading.
func (b *Blob[V]) TryGet(ctx context.Context, suffix string) (V, bool, error) {
	return b.vc.get(ctx, b.vc.key(ctx, suffix))
}

// Modify rewrites the cached value in place. It reports false when nothing
// is cached and fn was not called.
func (b *Blob[V]) Modify(ctx context.Context, suffix string, fn func(V) (V, error)) (bool, error) {
	return b.vc.modify(ctx, b.vc.key(ctx, suffix), fn)
}

// Remove drops the value on every instance.
func (b *Blob[V]) Remove(ctx context.Context, suffix string) error {
	return b.vc.remove(ctx, b.vc.key(ctx, suffix))
}
