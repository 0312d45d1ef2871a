package depcache

import (
	"cmp"
	"context"
	"slices"
	"time"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/internal/util"
)

// FilterFunc is applied to every fetched batch after decoding, e.g. to drop
// elements the caller may not see. It must return a subset of batch in the
// same order. A nil FilterFunc keeps everything.
type FilterFunc[V any] func(ctx context.Context, batch []V) ([]V, error)

// Page is one page of a filtered read. Next is the cursor for the following
// page (the lowest score examined) and nil once the set is exhausted.
type Page[V any] struct {
	Items []V
	Next  *int64
}

// ScoreList is a ScoreSet with whole-collection replace on write and filtered
// cursor pagination on read.
//
// A cursor is the last score the caller has seen: the next page starts strictly
// below it. Scores must be unique per key (e.g. an id); elements sharing a
// score with the last element of a page may be skipped.
type ScoreList[V any] struct {
	set *ScoreSet[V]
}

func NewScoreList[V any](st SortedStore, cd c.Codec[V], log Logger, hooks Hooks) (*ScoreList[V], error) {
	set, err := NewScoreSet[V](st, cd, log, hooks)
	if err != nil {
		return nil, err
	}
	return &ScoreList[V]{set: set}, nil
}

// Set exposes the underlying ScoreSet.
func (l *ScoreList[V]) Set() *ScoreSet[V] { return l.set }

// SetRange stores source under key. With reset the key is deleted first (full
// replace). ttl > 0 is applied with a random spread so keys written together
// do not expire together. The delete-then-add sequence is not atomic.
func (l *ScoreList[V]) SetRange(ctx context.Context, key string, source []V, score ScoreFunc[V], reset bool, ttl time.Duration) error {
	if key == "" {
		return invalidf("empty key")
	}
	if source == nil {
		return invalidf("nil source for %q", key)
	}
	if score == nil {
		return invalidf("nil score func for %q", key)
	}
	if reset {
		if _, err := l.set.st.Del(ctx, key); err != nil {
			return err
		}
	}
	if len(source) == 0 {
		return nil
	}

	ordered := slices.Clone(source)
	slices.SortStableFunc(ordered, func(a, b V) int { return cmp.Compare(score(b), score(a)) })
	if err := l.set.AddRange(ctx, key, ordered, score); err != nil {
		return err
	}
	if ttl > 0 {
		return l.set.st.Expire(ctx, key, util.Spread(ttl))
	}
	return nil
}

// GetRange returns up to count filtered elements strictly below cursor (from
// the top when cursor is nil). Fewer than count means the set is exhausted.
// Only elements scored >= 0 are paged; a negative cursor yields nothing.
func (l *ScoreList[V]) GetRange(ctx context.Context, key string, filter FilterFunc[V], cursor *int64, count int) ([]V, error) {
	p, err := l.GetPage(ctx, key, filter, cursor, count)
	return p.Items, err
}

// GetPage is GetRange that also returns the cursor of the next page.
//
// Each batch fetches as many raw elements as are still missing; when the
// filter removes some, the next batch starts strictly below the lowest score
// just examined. The ceiling therefore decreases on every round trip and the
// walk ends at score 0.
func (l *ScoreList[V]) GetPage(ctx context.Context, key string, filter FilterFunc[V], cursor *int64, count int) (Page[V], error) {
	if key == "" {
		return Page[V]{}, invalidf("empty key")
	}
	if count <= 0 || (cursor != nil && *cursor <= 0) {
		return Page[V]{}, nil
	}

	var ceiling int64
	if cursor == nil {
		top, ok, err := l.set.topScore(ctx, key)
		if err != nil || !ok {
			return Page[V]{}, err
		}
		ceiling = top
	} else {
		ceiling = below(*cursor)
	}

	items := make([]V, 0, count)
	for remaining := count; remaining > 0; {
		take := remaining
		raw, err := l.set.rawPage(ctx, key, ceiling, take)
		if err != nil {
			return Page[V]{}, err
		}
		if len(raw) == 0 {
			break
		}

		kept := l.set.decode(key, raw)
		if filter != nil && len(kept) > 0 {
			if kept, err = filter(ctx, kept); err != nil {
				return Page[V]{}, err
			}
		}
		if len(kept) > remaining {
			kept = kept[:remaining]
		}
		items = append(items, kept...)
		remaining -= len(kept)

		low := raw[len(raw)-1].Score
		if len(raw) < take || low <= 0 {
			// short batch or score 0 reached: nothing left below
			break
		}
		if remaining == 0 {
			return Page[V]{Items: items, Next: &low}, nil
		}
		ceiling = below(low)
	}

	l.set.log.Debug("score list exhausted", Fields{"key": key, "returned": len(items), "requested": count})
	return Page[V]{Items: items}, nil
}

// DeleteByElementProperty evicts one known element out of band; see
// ScoreSet.RemoveByProperty for the score-bucket caveat.
func (l *ScoreList[V]) DeleteByElementProperty(ctx context.Context, key string, value int64, selector, scoreOf func(V) int64) (int64, error) {
	return l.set.RemoveByProperty(ctx, key, value, selector, scoreOf)
}
