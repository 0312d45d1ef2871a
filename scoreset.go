package depcache

import (
	"context"
	"errors"
	"fmt"
	"math"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/store"
)

// ScoreFunc computes the sort score of an element.
type ScoreFunc[V any] func(V) int64

// MaxExactScore bounds the magnitude of a score. The store keeps scores as
// doubles, so larger integers would collapse onto their neighbours.
const MaxExactScore int64 = 1 << 53

// SortedStore is the part of the backing store score sets use.
type SortedStore interface {
	store.KV
	store.SortedSets
}

// ScoreSet manages named sorted collections of V ordered by descending score.
// Members are stored as codec bytes; undecodable members are dropped on read.
type ScoreSet[V any] struct {
	st    SortedStore
	codec c.Codec[V]
	log   Logger
	hooks Hooks
}

// NewScoreSet builds a ScoreSet. Store and codec are required; nil logger and
// hooks default to no-ops.
func NewScoreSet[V any](st SortedStore, cd c.Codec[V], log Logger, hooks Hooks) (*ScoreSet[V], error) {
	if st == nil {
		return nil, errors.New("depcache: score set requires a store")
	}
	if cd == nil {
		return nil, errors.New("depcache: score set requires a codec")
	}
	if log == nil {
		log = NopLogger{}
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &ScoreSet[V]{st: st, codec: cd, log: log, hooks: hooks}, nil
}

// AddRange upserts every element under its computed score. An empty
// (non-nil) slice is a no-op.
func (s *ScoreSet[V]) AddRange(ctx context.Context, key string, elements []V, score ScoreFunc[V]) error {
	if key == "" {
		return invalidf("empty key")
	}
	if elements == nil {
		return invalidf("nil elements for %q", key)
	}
	if score == nil {
		return invalidf("nil score func for %q", key)
	}
	if len(elements) == 0 {
		return nil
	}

	members := make([]store.ZMember, 0, len(elements))
	for i, e := range elements {
		b, err := s.codec.Encode(e)
		if err != nil {
			return fmt.Errorf("depcache: encode element %d of %q: %w", i, key, err)
		}
		sc := score(e)
		if sc > MaxExactScore || sc < -MaxExactScore {
			return invalidf("score %d of element %d of %q exceeds 2^53", sc, i, key)
		}
		members = append(members, store.ZMember{Score: sc, Member: b})
	}
	return s.st.ZAdd(ctx, key, members...)
}

// GetTopByScore returns the highest-scored element; ok=false when the set is
// empty, absent, or its top member does not decode.
func (s *ScoreSet[V]) GetTopByScore(ctx context.Context, key string) (v V, ok bool, err error) {
	if key == "" {
		return v, false, invalidf("empty key")
	}
	raw, err := s.st.ZRangeByScoreDesc(ctx, key, store.MinScore, store.MaxScore, 0, 1)
	if err != nil || len(raw) == 0 {
		return v, false, err
	}
	out := s.decode(key, raw)
	if len(out) == 0 {
		return v, false, nil
	}
	return out[0], true, nil
}

// GetPageDescending returns up to take elements with low <= score <= high
// after skipping skip, highest score first. take < 0 means no limit.
func (s *ScoreSet[V]) GetPageDescending(ctx context.Context, key string, skip, take int, low, high int64) ([]V, error) {
	if key == "" {
		return nil, invalidf("empty key")
	}
	if skip < 0 {
		skip = 0
	}
	raw, err := s.st.ZRangeByScoreDesc(ctx, key, low, high, skip, take)
	if err != nil {
		return nil, err
	}
	return s.decode(key, raw), nil
}

// RemoveByProperty scans the whole set for the first element whose
// selector(element) == value and removes every member sharing its score.
// Unrelated elements with the same score are removed too; callers must keep
// scores unique. Absent keys and non-sorted-set keys are a no-op.
// The scan is O(n) in the set size and reads the set in batches.
func (s *ScoreSet[V]) RemoveByProperty(ctx context.Context, key string, value int64, selector, scoreOf func(V) int64) (int64, error) {
	if key == "" {
		return 0, invalidf("empty key")
	}
	if selector == nil {
		return 0, invalidf("nil selector for %q", key)
	}
	typ, err := s.st.KeyType(ctx, key)
	if err != nil {
		return 0, err
	}
	if typ != "zset" {
		return 0, nil
	}

	for skip := 0; ; skip += removeScanBatch {
		raw, err := s.st.ZRangeByScoreDesc(ctx, key, store.MinScore, store.MaxScore, skip, removeScanBatch)
		if err != nil {
			return 0, err
		}
		for _, m := range raw {
			v, err := s.codec.Decode(m.Member)
			if err != nil {
				s.dropped(key, err)
				continue
			}
			if selector(v) != value {
				continue
			}
			score := m.Score
			if scoreOf != nil {
				score = scoreOf(v)
			}
			return s.st.ZRemRangeByScore(ctx, key, score, score)
		}
		if len(raw) < removeScanBatch {
			return 0, nil
		}
	}
}

// rawPage is the undecoded read used by pagination; scores come from the
// store entries so undecodable members still move the cursor. Pagination
// covers scores >= 0 only.
func (s *ScoreSet[V]) rawPage(ctx context.Context, key string, high int64, take int) ([]store.ZMember, error) {
	return s.st.ZRangeByScoreDesc(ctx, key, 0, high, 0, take)
}

func (s *ScoreSet[V]) topScore(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.st.ZRangeByScoreDesc(ctx, key, 0, store.MaxScore, 0, 1)
	if err != nil || len(raw) == 0 {
		return 0, false, err
	}
	return raw[0].Score, true, nil
}

// below returns the highest score strictly under sc as the store compares
// scores. Past 2^53 sc-1 rounds back to sc, so step to the next double.
func below(sc int64) int64 {
	if b := sc - 1; float64(b) < float64(sc) {
		return b
	}
	return int64(math.Nextafter(float64(sc), math.Inf(-1)))
}

func (s *ScoreSet[V]) decode(key string, raw []store.ZMember) []V {
	out := make([]V, 0, len(raw))
	for _, m := range raw {
		v, err := s.codec.Decode(m.Member)
		if err != nil {
			s.dropped(key, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *ScoreSet[V]) dropped(key string, err error) {
	s.hooks.DecodeDropped(key, "value_decode")
	s.log.Debug("dropped undecodable member", Fields{"key": key, "err": err})
}
