package depcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The engine calls them on hot paths.
type Hooks interface {
	// A stored element failed to decode and was dropped from a read.
	DecodeDropped(key, reason string)

	// A dependency set was reset; deleted is the number of cache keys removed.
	DependencyReset(depKey string, deleted int)

	// Throttle found the counter at quota and waited without consuming a slot.
	ThrottleWait(key string)

	// The throttled action reported an upstream quota error and was retried.
	ThrottleUpstreamQuota(key string)

	// Throttle ran out of attempts.
	ThrottleExhausted(key string, attempts int)

	// TryThrottle rejected a call over quota.
	TryThrottleRejected(key string)

	// A local-tier entry was discarded and reloaded.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode", "marker_error"}
	LocalReload(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) DecodeDropped(string, string)  {}
func (NopHooks) DependencyReset(string, int)   {}
func (NopHooks) ThrottleWait(string)           {}
func (NopHooks) ThrottleUpstreamQuota(string)  {}
func (NopHooks) ThrottleExhausted(string, int) {}
func (NopHooks) TryThrottleRejected(string)    {}
func (NopHooks) LocalReload(string, string)    {}
