package depcache

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	c "github.com/unkn0wn-root/depcache/codec"
	rs "github.com/unkn0wn-root/depcache/store/redis"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func byID(i item) int64 { return i.ID }

var itemCodec c.Codec[item] = c.JSONCodec[item]{}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *rs.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := rs.New(rs.Config{
		Client:      goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
		CloseClient: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return mr, st
}

// newTestEngine wires an engine over a fresh miniredis. Store is filled in
// when opts.Store is nil.
func newTestEngine(t *testing.T, opts Options) (*miniredis.Miniredis, *Engine) {
	t.Helper()
	var mr *miniredis.Miniredis
	if opts.Store == nil {
		mr, opts.Store = newTestStore(t)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return mr, e
}

// peerEngine builds a second engine (another "process") over the store of e.
func peerEngine(t *testing.T, e *Engine, opts Options) *Engine {
	t.Helper()
	opts.Store = e.Store()
	opts.Namespace = e.Namespace()
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New peer: %v", err)
	}
	return p
}

func newItemList(t *testing.T) (*miniredis.Miniredis, *ScoreList[item], *recHooks) {
	t.Helper()
	mr, st := newTestStore(t)
	h := &recHooks{}
	l, err := NewScoreList[item](st, itemCodec, nil, h)
	if err != nil {
		t.Fatal(err)
	}
	return mr, l, h
}

func items(ids ...int64) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{ID: id, Name: "n"}
	}
	return out
}

func ids(in []item) []int64 {
	out := make([]int64, len(in))
	for i, it := range in {
		out[i] = it.ID
	}
	return out
}

func reject(bad ...int64) FilterFunc[item] {
	return func(_ context.Context, batch []item) ([]item, error) {
		out := batch[:0:0]
		for _, it := range batch {
			drop := false
			for _, b := range bad {
				if it.ID == b {
					drop = true
				}
			}
			if !drop {
				out = append(out, it)
			}
		}
		return out, nil
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T { return &v }

// recHooks records hook calls for assertions.
type recHooks struct {
	NopHooks
	mu        sync.Mutex
	dropped   int
	resets    map[string]int
	waits     int
	upstream  int
	exhausted int
	rejected  int
	reloads   map[string]int
}

func (h *recHooks) DecodeDropped(string, string) {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func (h *recHooks) DependencyReset(depKey string, deleted int) {
	h.mu.Lock()
	if h.resets == nil {
		h.resets = map[string]int{}
	}
	h.resets[depKey] += deleted
	h.mu.Unlock()
}

func (h *recHooks) ThrottleWait(string) {
	h.mu.Lock()
	h.waits++
	h.mu.Unlock()
}

func (h *recHooks) ThrottleUpstreamQuota(string) {
	h.mu.Lock()
	h.upstream++
	h.mu.Unlock()
}

func (h *recHooks) ThrottleExhausted(string, int) {
	h.mu.Lock()
	h.exhausted++
	h.mu.Unlock()
}

func (h *recHooks) TryThrottleRejected(string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *recHooks) LocalReload(_ string, reason string) {
	h.mu.Lock()
	if h.reloads == nil {
		h.reloads = map[string]int{}
	}
	h.reloads[reason]++
	h.mu.Unlock()
}
