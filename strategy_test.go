package depcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/wrapperspb"

	c "github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/store"
)

type counted[V any] struct {
	calls atomic.Int32
	v     V
}

func (l *counted[V]) load(context.Context) (V, error) {
	l.calls.Add(1)
	return l.v, nil
}

func TestBlobRemote(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{
		Namespace: "app",
		Descriptors: []Descriptor{{
			Name: "settings", Shape: ShapeBlob, Version: 2, TTL: time.Minute,
			Dependencies: []EntityType{"Setting"},
		}},
	})
	b, err := BindBlob(e, "settings", itemCodec)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Key(ctx, "site"); got != "app:v2:settings:site" {
		t.Fatalf("key=%q", got)
	}

	src := &counted[item]{v: item{ID: 1, Name: "first"}}
	for i := 0; i < 3; i++ {
		v, err := b.GetOrLoad(ctx, "site", src.load)
		if err != nil || v.ID != 1 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if src.calls.Load() != 1 {
		t.Fatalf("loads=%d want 1", src.calls.Load())
	}

	ok, err := b.Modify(ctx, "site", func(v item) (item, error) { v.Name = "second"; return v, nil })
	if err != nil || !ok {
		t.Fatalf("modify ok=%v err=%v", ok, err)
	}
	if v, ok, _ := b.TryGet(ctx, "site"); !ok || v.Name != "second" {
		t.Fatalf("after modify v=%v ok=%v", v, ok)
	}

	if err := e.Reset.ResetOnDependencyChange(ctx, "Setting", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.TryGet(ctx, "site"); ok {
		t.Fatal("value survived dependency reset")
	}

	if ok, err := b.Modify(ctx, "site", func(v item) (item, error) { return v, nil }); ok || err != nil {
		t.Fatalf("modify on miss: ok=%v err=%v", ok, err)
	}
}

func TestBlobLoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{{Name: "b", Shape: ShapeBlob}}})
	b, _ := BindBlob(e, "b", itemCodec)
	boom := errors.New("db down")
	if _, err := b.GetOrLoad(ctx, "", func(context.Context) (item, error) { return item{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if _, ok, _ := b.TryGet(ctx, ""); ok {
		t.Fatal("failed load was cached")
	}
	if _, err := b.GetOrLoad(ctx, "", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil loader: %v", err)
	}
}

func TestBlobRemoteDropsUndecodable(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	mr, e := newTestEngine(t, Options{Hooks: h, Descriptors: []Descriptor{{Name: "b", Shape: ShapeBlob}}})
	b, _ := BindBlob(e, "b", itemCodec)
	_ = mr.Set(b.Key(ctx, "x"), "garbage")

	src := &counted[item]{v: item{ID: 9}}
	v, err := b.GetOrLoad(ctx, "x", src.load)
	if err != nil || v.ID != 9 || src.calls.Load() != 1 {
		t.Fatalf("v=%v err=%v loads=%d", v, err, src.calls.Load())
	}
	if h.dropped != 1 {
		t.Fatalf("dropped=%d", h.dropped)
	}
}

func localDescs(loc Location) []Descriptor {
	return []Descriptor{{Name: "profile", Shape: ShapeBlob, Location: loc, Dependencies: []EntityType{"User"}}}
}

// A dependency reset issued by one instance invalidates the in-memory copy of
// another.
func TestBlobLocalInvalidatedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	_, a := newTestEngine(t, Options{Hooks: h, Descriptors: localDescs(LocationLocal)})
	other := peerEngine(t, a, Options{Descriptors: localDescs(LocationLocal)})

	ba, err := BindBlob(a, "profile", itemCodec)
	if err != nil {
		t.Fatal(err)
	}
	src := &counted[item]{v: item{ID: 5}}
	_, _ = ba.GetOrLoad(ctx, "5", src.load)
	_, _ = ba.GetOrLoad(ctx, "5", src.load)
	if src.calls.Load() != 1 {
		t.Fatalf("loads=%d want 1 before reset", src.calls.Load())
	}
	if ok, _ := a.Store().Exists(ctx, ba.Key(ctx, "5")); ok {
		t.Fatal("local blob must not write the value to the store")
	}

	if err := other.Reset.ResetOnDependencyChange(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ba.TryGet(ctx, "5"); ok {
		t.Fatal("stale local copy served after reset")
	}
	if h.reloads["gen_mismatch"] != 1 {
		t.Fatalf("reloads=%v", h.reloads)
	}
	_, _ = ba.GetOrLoad(ctx, "5", src.load)
	if src.calls.Load() != 2 {
		t.Fatalf("loads=%d want 2 after reset", src.calls.Load())
	}
}

func TestBlobLocalPrefixResetAndRemove(t *testing.T) {
	ctx := context.Background()
	_, a := newTestEngine(t, Options{Descriptors: localDescs(LocationLocal)})
	ba, _ := BindBlob(a, "profile", itemCodec)
	src := &counted[item]{v: item{ID: 5}}

	_, _ = ba.GetOrLoad(ctx, "5", src.load)
	if _, err := a.Reset.ResetKeys(ctx, ba.Key(ctx, "")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ba.TryGet(ctx, "5"); ok {
		t.Fatal("prefix reset did not invalidate the local copy")
	}

	_, _ = ba.GetOrLoad(ctx, "5", src.load)
	if err := ba.Remove(ctx, "5"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ba.TryGet(ctx, "5"); ok {
		t.Fatal("removed value still served")
	}
}

func TestBlobBothLoadsOnceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	fast := Options{Descriptors: localDescs(LocationBoth), BufferPoll: time.Millisecond}
	_, a := newTestEngine(t, fast)
	peer := peerEngine(t, a, fast)

	ba, err := BindBlob(a, "profile", itemCodec)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := BindBlob(peer, "profile", itemCodec)
	if err != nil {
		t.Fatal(err)
	}

	src := &counted[item]{v: item{ID: 7, Name: "shared"}}
	var wg sync.WaitGroup
	for _, b := range []*Blob[item]{ba, bb, ba, bb} {
		wg.Add(1)
		go func(b *Blob[item]) {
			defer wg.Done()
			v, err := b.GetOrLoad(ctx, "7", src.load)
			if err != nil || v.ID != 7 {
				t.Errorf("v=%v err=%v", v, err)
			}
		}(b)
	}
	wg.Wait()
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("loads=%d want 1", n)
	}
	if ok, _ := a.Store().Exists(ctx, ba.Key(ctx, "7")+"::data"); !ok {
		t.Fatal("shared buffer missing")
	}
	if ok, _ := a.Store().Exists(ctx, ba.Key(ctx, "7")+"::data::lock"); ok {
		t.Fatal("lock not released")
	}

	if err := ba.Remove(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := bb.TryGet(ctx, "7"); ok {
		t.Fatal("peer copy survived Remove")
	}
	_, _ = bb.GetOrLoad(ctx, "7", src.load)
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("loads=%d want 2 after remove", n)
	}
}

func TestBlobBothGivesUpWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	opts := Options{Descriptors: localDescs(LocationBoth), BufferPoll: time.Millisecond, BufferPolls: 3}
	mr, e := newTestEngine(t, opts)
	b, _ := BindBlob(e, "profile", itemCodec)
	_ = mr.Set(b.Key(ctx, "1")+"::data::lock", "someone-else")

	src := &counted[item]{}
	if _, err := b.GetOrLoad(ctx, "1", src.load); err == nil {
		t.Fatal("expected poll exhaustion error")
	}
	if src.calls.Load() != 0 {
		t.Fatal("loader ran without the lock")
	}
}

func TestBlobGroupScopedKeys(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Namespace: "app", Descriptors: []Descriptor{{
		Name: "inbox", Shape: ShapeBlob, UserDependencies: []EntityType{"Message"},
	}}})
	b, _ := BindBlob(e, "inbox", itemCodec)

	one, two := WithGroup(ctx, 1), WithGroup(ctx, 2)
	if got := b.Key(one, ""); got != "app:inbox:group:1" {
		t.Fatalf("key=%q", got)
	}
	_, _ = b.GetOrLoad(one, "", (&counted[item]{v: item{ID: 1}}).load)
	_, _ = b.GetOrLoad(two, "", (&counted[item]{v: item{ID: 2}}).load)

	if err := e.Reset.ResetOnDependencyChange(ctx, "Message", ptr[int64](1)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.TryGet(one, ""); ok {
		t.Fatal("group 1 value survived its reset")
	}
	if v, ok, _ := b.TryGet(two, ""); !ok || v.ID != 2 {
		t.Fatal("group 2 value removed by group 1 reset")
	}
}

func TestDictionaryLocalRemoveIsExact(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{{
		Name: "users", Shape: ShapeDictionary, Location: LocationLocal, BaseKey: "user",
	}}})
	d, err := BindDictionary[int64](e, "users", itemCodec)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.PutMany(ctx, map[int64]item{1: {ID: 1}, 10: {ID: 10}}); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetMany(ctx, []int64{1, 10, 99})
	if err != nil || len(got) != 2 {
		t.Fatalf("got=%v err=%v", got, err)
	}

	if err := d.Remove(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, _ = d.GetMany(ctx, []int64{1, 10})
	if _, ok := got[1]; ok {
		t.Fatal("id 1 survived Remove")
	}
	if _, ok := got[10]; !ok {
		t.Fatal("id 10 removed together with id 1")
	}

	var loadedID int64
	v, err := d.GetOrLoad(ctx, 1, func(_ context.Context, id int64) (item, error) {
		loadedID = id
		return item{ID: id, Name: "reloaded"}, nil
	})
	if err != nil || loadedID != 1 || v.Name != "reloaded" {
		t.Fatalf("v=%v loaded=%d err=%v", v, loadedID, err)
	}
	if ok, err := d.Modify(ctx, 10, func(v item) (item, error) { v.Name = "x"; return v, nil }); !ok || err != nil {
		t.Fatalf("modify ok=%v err=%v", ok, err)
	}
	if got, _ := d.GetMany(ctx, []int64{10}); got[10].Name != "x" {
		t.Fatalf("modified=%v", got[10])
	}
}

func TestDictionaryRemoteKeys(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Namespace: "app", Descriptors: []Descriptor{{
		Name: "users", Shape: ShapeDictionary, BaseKey: "user",
	}}})
	d, _ := BindDictionary[string](e, "users", itemCodec)
	_ = d.PutMany(ctx, map[string]item{"abc": {ID: 3}})
	if ok, _ := e.Store().Exists(ctx, "app:user::abc"); !ok {
		t.Fatal("expected app:user::abc")
	}
}

type stats struct {
	Title string `json:"title"`
	Views int64  `json:"views"`
}

func TestHashFieldOperations(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{{
		Name: "stats", Shape: ShapeHash, Dependencies: []EntityType{"Video"},
	}}})
	h, err := BindHash[stats](e, "stats")
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := h.Increment(ctx, "v1", "views", 1); ok || err != nil {
		t.Fatalf("increment on miss: ok=%v err=%v", ok, err)
	}

	src := &counted[stats]{v: stats{Title: "intro", Views: 10}}
	v, err := h.GetOrLoad(ctx, "v1", src.load, nil)
	if err != nil || v.Views != 10 {
		t.Fatalf("v=%+v err=%v", v, err)
	}
	if ok, err := h.Increment(ctx, "v1", "views", 5); !ok || err != nil {
		t.Fatalf("increment ok=%v err=%v", ok, err)
	}
	if ok, err := h.SetField(ctx, "v1", "title", "renamed"); !ok || err != nil {
		t.Fatalf("set field ok=%v err=%v", ok, err)
	}
	v, _ = h.GetOrLoad(ctx, "v1", src.load, nil)
	if v.Views != 15 || v.Title != "renamed" || src.calls.Load() != 1 {
		t.Fatalf("v=%+v loads=%d", v, src.calls.Load())
	}

	v, _ = h.GetOrLoad(ctx, "v1", src.load, func(s stats) bool { return s.Views > 12 })
	if v.Views != 10 || src.calls.Load() != 2 {
		t.Fatalf("refresh: v=%+v loads=%d", v, src.calls.Load())
	}

	if err := h.Put(ctx, "v1", func(context.Context) (stats, error) { return stats{Views: 99}, nil }); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.GetMany(ctx, []string{"v1", "missing"}); len(got) != 1 || got[0].Views != 10 {
		t.Fatalf("put overwrote existing hash: %+v", got)
	}

	if err := e.Reset.ResetOnDependencyChange(ctx, "Video", nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.GetMany(ctx, []string{"v1"}); len(got) != 0 {
		t.Fatal("hash survived dependency reset")
	}

	_ = h.Put(ctx, "v2", func(context.Context) (stats, error) { return stats{Views: 1}, nil })
	if err := h.Delete(ctx, "v2"); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.GetMany(ctx, []string{"v2"}); len(got) != 0 {
		t.Fatal("hash survived Delete")
	}
}

type pageCall struct{ skip, take int }

type intSource struct {
	n     int
	calls []pageCall
}

func (s *intSource) load(_ context.Context, skip, take int) ([]int, error) {
	s.calls = append(s.calls, pageCall{skip, take})
	var out []int
	for i := skip; i < skip+take && i < s.n; i++ {
		out = append(out, i)
	}
	return out, nil
}

func TestListGrowsOnDemand(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{{
		Name: "videos", Shape: ShapePagedList, InitialPageSize: 10, PageSize: 5,
	}}})
	l, err := BindList(e, "videos", c.Codec[int](c.JSONCodec[int]{}))
	if err != nil {
		t.Fatal(err)
	}
	src := &intSource{n: 100}

	got, err := l.GetOrLoad(ctx, "", src.load, 0, 5)
	if err != nil || len(got) != 5 || got[0] != 0 || got[4] != 4 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	got, _ = l.GetOrLoad(ctx, "", src.load, 8, 5)
	if len(got) != 5 || got[0] != 8 || got[4] != 12 {
		t.Fatalf("got=%v", got)
	}
	got, _ = l.GetOrLoad(ctx, "", src.load, 2, 3)
	if len(got) != 3 || got[0] != 2 {
		t.Fatalf("got=%v", got)
	}
	want := []pageCall{{0, 10}, {10, 5}}
	if len(src.calls) != len(want) || src.calls[0] != want[0] || src.calls[1] != want[1] {
		t.Fatalf("loader calls=%v want %v", src.calls, want)
	}

	if got, _ := l.GetOrLoad(ctx, "", src.load, 0, 0); len(got) != 0 {
		t.Fatalf("take 0: %v", got)
	}

	if err := l.Reset(ctx, ""); err != nil {
		t.Fatal(err)
	}
	_, _ = l.GetOrLoad(ctx, "", src.load, 30, 5)
	if last := src.calls[len(src.calls)-1]; last != (pageCall{0, 35}) {
		t.Fatalf("initial fill after reset=%v want {0 35}", last)
	}
}

func TestListReloadInitial(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{{
		Name: "top", Shape: ShapePagedList, InitialPageSize: 4, PageSize: 4, ReloadInitial: true,
	}}})
	l, _ := BindList(e, "top", c.Codec[int](c.JSONCodec[int]{}))
	src := &intSource{n: 100}

	_, _ = l.GetOrLoad(ctx, "", src.load, 0, 2)
	_, _ = l.GetOrLoad(ctx, "", src.load, 0, 2)
	if len(src.calls) != 2 || src.calls[1] != (pageCall{0, 4}) {
		t.Fatalf("calls=%v: list at initial size should reload", src.calls)
	}
	_, _ = l.GetOrLoad(ctx, "", src.load, 4, 2)
	_, _ = l.GetOrLoad(ctx, "", src.load, 0, 2)
	if len(src.calls) != 3 {
		t.Fatalf("calls=%v: grown list must not reload", src.calls)
	}
}

func TestScoresTrackedPerGroup(t *testing.T) {
	ctx := context.Background()
	_, e := newTestEngine(t, Options{Namespace: "app", Descriptors: []Descriptor{{
		Name: "feed", Shape: ShapeSortedSet, TTL: time.Minute,
		Dependencies: []EntityType{"Video"}, UserDependencies: []EntityType{"Follow"},
	}}})
	s, err := BindScores(e, "feed", itemCodec)
	if err != nil {
		t.Fatal(err)
	}
	one, two := WithGroup(ctx, 1), WithGroup(ctx, 2)
	_ = s.SetRange(one, "", items(30, 20, 10), byID, true)
	_ = s.SetRange(two, "", items(3, 2, 1), byID, true)

	p, err := s.GetPage(one, "", reject(20), nil, 2)
	if err != nil || !equalIDs(ids(p.Items), []int64{30, 10}) {
		t.Fatalf("page=%v err=%v", ids(p.Items), err)
	}

	if err := e.Reset.ResetOnDependencyChange(ctx, "Follow", ptr[int64](1)); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetRange(one, "", nil, nil, 10); len(got) != 0 {
		t.Fatalf("group 1 feed survived: %v", ids(got))
	}
	if got, _ := s.GetRange(two, "", nil, nil, 10); len(got) != 3 {
		t.Fatalf("group 2 feed=%v", ids(got))
	}

	if err := e.Reset.ResetOnDependencyChange(ctx, "Video", nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetRange(two, "", nil, nil, 10); len(got) != 0 {
		t.Fatalf("global reset left group 2 feed: %v", ids(got))
	}

	_ = s.SetRange(two, "", items(3, 2, 1), byID, true)
	if n, err := s.DeleteByElementProperty(two, "", 2, byID, byID); err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestBindErrors(t *testing.T) {
	_, e := newTestEngine(t, Options{Descriptors: []Descriptor{
		{Name: "b", Shape: ShapeBlob},
		{Name: "h", Shape: ShapeHash},
	}})
	if _, err := BindHash[stats](e, "b"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("shape mismatch: %v", err)
	}
	if _, err := BindBlob[item](e, "b", nil); err != nil {
		t.Fatalf("nil codec selects the descriptor codec: %v", err)
	}
	if _, err := BindBlob(e, "b", itemCodec); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("double bind: %v", err)
	}
	if _, err := BindScores(e, "nope", itemCodec); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unknown: %v", err)
	}
	if u := e.Registry.Unbound(); len(u) != 1 || u[0] != "h" {
		t.Fatalf("unbound=%v", u)
	}
}

func TestNewRequiresStoreAndClose(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without store")
	}
	_, st := newTestStore(t)
	if _, err := New(Options{Store: st, Descriptors: []Descriptor{{Name: ""}}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("invalid descriptor: %v", err)
	}
	_, e := newTestEngine(t, Options{Descriptors: localDescs(LocationLocal)})
	if e.Namespace() != defaultNamespace || e.InstanceID() == "" {
		t.Fatalf("ns=%q instance=%q", e.Namespace(), e.InstanceID())
	}
	if _, err := BindBlob(e, "profile", itemCodec); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBindResolvesDescriptorCodec(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	_, e := newTestEngine(t, Options{Hooks: h, Descriptors: []Descriptor{
		{Name: "mp", Shape: ShapeBlob, Codec: "msgpack"},
		{Name: "lim", Shape: ShapeBlob, MaxValueBytes: 8},
		{Name: "pb", Shape: ShapeBlob},
		{Name: "feed", Shape: ShapeSortedSet, Codec: "cbor"},
	}})

	mp, err := BindBlob[item](e, "mp", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := item{ID: 7, Name: "seven"}
	if _, err := mp.GetOrLoad(ctx, "x", (&counted[item]{v: want}).load); err != nil {
		t.Fatal(err)
	}
	raw, ok, err := e.Store().Get(ctx, mp.Key(ctx, "x"))
	if err != nil || !ok {
		t.Fatalf("stored value missing: ok=%v err=%v", ok, err)
	}
	var got map[string]any
	if err := msgpack.Unmarshal(raw, &got); err != nil || got["name"] != "seven" {
		t.Fatalf("stored bytes are not msgpack: %v err=%v", got, err)
	}

	lim, err := BindBlob[item](e, "lim", nil)
	if err != nil {
		t.Fatal(err)
	}
	src := &counted[item]{v: item{ID: 1, Name: "longer than eight bytes"}}
	_, _ = lim.GetOrLoad(ctx, "x", src.load)
	if _, ok, err := lim.TryGet(ctx, "x"); err != nil || ok {
		t.Fatalf("oversized value served: ok=%v err=%v", ok, err)
	}
	if h.dropped != 1 {
		t.Fatalf("dropped=%d want 1", h.dropped)
	}
	_, _ = lim.GetOrLoad(ctx, "x", src.load)
	if src.calls.Load() != 2 {
		t.Fatalf("loads=%d want 2", src.calls.Load())
	}

	pb, err := BindBlob(e, "pb", c.NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pb.GetOrLoad(ctx, "x", (&counted[*wrapperspb.StringValue]{v: wrapperspb.String("hi")}).load); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := pb.TryGet(ctx, "x"); err != nil || !ok || v.GetValue() != "hi" {
		t.Fatalf("protobuf blob: v=%v ok=%v err=%v", v, ok, err)
	}

	feed, err := BindScores[item](e, "feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := feed.SetRange(ctx, "", items(3, 2, 1), byID, true); err != nil {
		t.Fatal(err)
	}
	if got, err := feed.GetRange(ctx, "", nil, nil, 5); err != nil || !equalIDs(ids(got), []int64{3, 2, 1}) {
		t.Fatalf("feed=%v err=%v", ids(got), err)
	}
	top, err := e.Store().ZRangeByScoreDesc(ctx, feed.Key(ctx, ""), store.MinScore, store.MaxScore, 0, 1)
	if err != nil || len(top) != 1 {
		t.Fatalf("top=%v err=%v", top, err)
	}
	var first item
	if err := cbor.Unmarshal(top[0].Member, &first); err != nil || first.ID != 3 {
		t.Fatalf("member is not cbor: %v err=%v", first, err)
	}
}
