package depcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/depcache/internal/wire"
)

func TestLocalByName(t *testing.T) {
	d := Descriptor{Name: "p", Shape: ShapeBlob, Location: LocationLocal, TTL: time.Minute}
	for _, name := range []string{"", "lru", "ristretto", "bigcache"} {
		t.Run(name, func(t *testing.T) {
			f, err := LocalByName(name)
			if err != nil {
				t.Fatal(err)
			}
			p, err := f(d)
			if err != nil {
				t.Fatal(err)
			}
			_ = p.Close(context.Background())
		})
	}
	if _, err := LocalByName("memcached"); err == nil {
		t.Fatal("expected unknown tier error")
	}
}

func TestBlobOverBigcacheTier(t *testing.T) {
	ctx := context.Background()
	f, _ := LocalByName("bigcache")
	_, e := newTestEngine(t, Options{Local: f, Descriptors: localDescs(LocationLocal)})
	b, err := BindBlob(e, "profile", itemCodec)
	if err != nil {
		t.Fatal(err)
	}
	src := &counted[item]{v: item{ID: 3}}
	for i := 0; i < 3; i++ {
		if v, err := b.GetOrLoad(ctx, "3", src.load); err != nil || v.ID != 3 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if src.calls.Load() != 1 {
		t.Fatalf("loads=%d want 1", src.calls.Load())
	}
}

func TestLocalTierDropsCorruptCopies(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	_, e := newTestEngine(t, Options{Hooks: h, Descriptors: localDescs(LocationLocal)})
	b, _ := BindBlob(e, "profile", itemCodec)
	src := &counted[item]{v: item{ID: 4}}
	_, _ = b.GetOrLoad(ctx, "4", src.load)

	key := b.Key(ctx, "4")
	lt := b.vc.local
	_, _ = lt.p.Set(ctx, key, []byte("not framed"), 1, time.Minute)
	if _, ok, _ := b.TryGet(ctx, "4"); ok {
		t.Fatal("corrupt copy served")
	}
	if h.reloads["corrupt"] != 1 {
		t.Fatalf("reloads=%v", h.reloads)
	}

	// a valid frame with an undecodable payload heals as value_decode
	_, _ = b.GetOrLoad(ctx, "4", src.load)
	g, _ := lt.gens.Snapshot(ctx, lt.marker(key))
	_, _ = lt.p.Set(ctx, key, wire.Encode(g, []byte("{")), 1, time.Minute)
	if _, ok, _ := b.TryGet(ctx, "4"); ok {
		t.Fatal("undecodable payload served")
	}
	if h.reloads["value_decode"] != 1 {
		t.Fatalf("reloads=%v", h.reloads)
	}
}
