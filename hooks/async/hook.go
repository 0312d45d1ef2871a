// Package asynchook moves depcache hook calls off the hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{DecodeDropEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	engine, _ := depcache.New(depcache.Options{Store: st, Hooks: hooks})
//
// Events are dropped, not queued, once the buffer is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/depcache"
)

type Hooks struct {
	inner   depcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(inner depcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) DecodeDropped(k, r string)       { h.try(func() { h.inner.DecodeDropped(k, r) }) }
func (h *Hooks) DependencyReset(k string, n int) { h.try(func() { h.inner.DependencyReset(k, n) }) }
func (h *Hooks) ThrottleWait(k string)           { h.try(func() { h.inner.ThrottleWait(k) }) }
func (h *Hooks) ThrottleUpstreamQuota(k string) {
	h.try(func() { h.inner.ThrottleUpstreamQuota(k) })
}
func (h *Hooks) ThrottleExhausted(k string, n int) {
	h.try(func() { h.inner.ThrottleExhausted(k, n) })
}
func (h *Hooks) TryThrottleRejected(k string) { h.try(func() { h.inner.TryThrottleRejected(k) }) }
func (h *Hooks) LocalReload(k, r string)      { h.try(func() { h.inner.LocalReload(k, r) }) }
