// Package promhooks counts depcache hook events with Prometheus collectors.
//
// Keys are not used as labels: throttle and dependency keys may carry user
// ids, which would make series unbounded.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/depcache"
)

type Hooks struct {
	decodeDropped *prometheus.CounterVec
	depResets     prometheus.Counter
	depResetKeys  prometheus.Counter
	throttleWaits prometheus.Counter
	upstreamQuota prometheus.Counter
	exhausted     prometheus.Counter
	tryRejected   prometheus.Counter
	localReloads  *prometheus.CounterVec
}

var _ depcache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under namespace ("" => "depcache").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if namespace == "" {
		namespace = "depcache"
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	h := &Hooks{
		decodeDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_dropped_total",
				Help:      "Stored entries dropped because they did not decode",
			},
			[]string{"reason"},
		),
		depResets:     counter("dependency_resets_total", "Dependency sets reset"),
		depResetKeys:  counter("dependency_reset_keys_total", "Cache keys deleted by dependency resets"),
		throttleWaits: counter("throttle_waits_total", "Throttle waits at quota"),
		upstreamQuota: counter("throttle_upstream_quota_total", "Throttled actions rejected upstream as over quota"),
		exhausted:     counter("throttle_exhausted_total", "Throttle calls that ran out of attempts"),
		tryRejected:   counter("try_throttle_rejected_total", "TryThrottle calls rejected over quota"),
		localReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "local_reloads_total",
				Help:      "Local-tier entries discarded",
			},
			[]string{"reason"},
		),
	}
	for _, c := range []prometheus.Collector{
		h.decodeDropped, h.depResets, h.depResetKeys, h.throttleWaits,
		h.upstreamQuota, h.exhausted, h.tryRejected, h.localReloads,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) DecodeDropped(_, reason string) { h.decodeDropped.WithLabelValues(reason).Inc() }

func (h *Hooks) DependencyReset(_ string, deleted int) {
	h.depResets.Inc()
	h.depResetKeys.Add(float64(deleted))
}

func (h *Hooks) ThrottleWait(string)           { h.throttleWaits.Inc() }
func (h *Hooks) ThrottleUpstreamQuota(string)  { h.upstreamQuota.Inc() }
func (h *Hooks) ThrottleExhausted(string, int) { h.exhausted.Inc() }
func (h *Hooks) TryThrottleRejected(string)    { h.tryRejected.Inc() }
func (h *Hooks) LocalReload(_, reason string)  { h.localReloads.WithLabelValues(reason).Inc() }
