package depcache

import "time"

const (
	defaultNamespace    = "depcache"
	defaultMaxAttempts  = 30
	defaultThrottleWait = 100 * time.Millisecond
	defaultQuotaWait    = 300 * time.Millisecond
	defaultMargin       = 100 * time.Millisecond
	defaultTryWindow    = time.Second
	defaultLocalSize    = 10_000
	defaultLocalTTL     = 10 * time.Minute
	defaultLockTTL      = 60 * time.Second
	defaultBufferPoll   = 200 * time.Millisecond
	defaultBufferPolls  = 300
	defaultInitialPage  = 100
	defaultPageSize     = 50
	defaultStrategyTTL  = time.Hour
	removeScanBatch     = 500
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
