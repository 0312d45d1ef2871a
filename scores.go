package depcache

import "context"

// Scores is a registry-bound ScoreList: keys follow the descriptor layout,
// writes apply the descriptor TTL and register its dependencies.
type Scores[V any] struct {
	strategy
	list *ScoreList[V]
}

// Key returns the storage key used for suffix in ctx.
func (s *Scores[V]) Key(ctx context.Context, suffix string) string { return s.key(ctx, suffix) }

// SetRange replaces (reset) or extends the collection and tracks the key.
func (s *Scores[V]) SetRange(ctx context.Context, suffix string, source []V, score ScoreFunc[V], reset bool) error {
	key := s.key(ctx, suffix)
	if err := s.list.SetRange(ctx, key, source, score, reset, s.d.TTL); err != nil {
		return err
	}
	return s.track(ctx, key)
}

func (s *Scores[V]) GetRange(ctx context.Context, suffix string, filter FilterFunc[V], cursor *int64, count int) ([]V, error) {
	return s.list.GetRange(ctx, s.key(ctx, suffix), filter, cursor, count)
}

func (s *Scores[V]) GetPage(ctx context.Context, suffix string, filter FilterFunc[V], cursor *int64, count int) (Page[V], error) {
	return s.list.GetPage(ctx, s.key(ctx, suffix), filter, cursor, count)
}

func (s *Scores[V]) DeleteByElementProperty(ctx context.Context, suffix string, value int64, selector, scoreOf func(V) int64) (int64, error) {
	return s.list.DeleteByElementProperty(ctx, s.key(ctx, suffix), value, selector, scoreOf)
}
