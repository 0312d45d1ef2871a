// Package sloghooks logs depcache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/depcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DecodeDropEvery   uint64
	ThrottleWaitEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	dropCtr atomic.Uint64
	waitCtr atomic.Uint64
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) DecodeDropped(key, reason string) {
	if h.l == nil || !sample(h.opts.DecodeDropEvery, &h.dropCtr) {
		return
	}
	h.l.Debug("depcache.decode_dropped",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) DependencyReset(depKey string, deleted int) {
	if h.l == nil {
		return
	}
	h.l.Info("depcache.dependency_reset",
		"dependency", depKey,
		"deleted", deleted)
}

func (h *Hooks) ThrottleWait(key string) {
	if h.l == nil || !sample(h.opts.ThrottleWaitEvery, &h.waitCtr) {
		return
	}
	h.l.Debug("depcache.throttle_wait", "key", key)
}

func (h *Hooks) ThrottleUpstreamQuota(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.throttle_upstream_quota", "key", key)
}

func (h *Hooks) ThrottleExhausted(key string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Error("depcache.throttle_exhausted",
		"key", key,
		"attempts", attempts)
}

func (h *Hooks) TryThrottleRejected(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("depcache.try_throttle_rejected", "key", key)
}

func (h *Hooks) LocalReload(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("depcache.local_reload",
		"key", h.redact(key),
		"reason", reason)
}
