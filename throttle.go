package depcache

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/depcache/store"
)

// ThrottleOptions tune the Throttler. Zero values take the defaults.
type ThrottleOptions struct {
	MaxAttempts int           // 0 => 30
	Wait        time.Duration // wait while the counter is at quota; 0 => 100ms
	Margin      time.Duration // added to the window TTL; 0 => 100ms
	TryWindow   time.Duration // TryThrottle window; 0 => 1s

	// QuotaBackOff builds the per-call schedule of waits after an upstream
	// quota error. nil => constant 300ms. Returning backoff.Stop ends the call
	// with a ThrottleExhaustedError.
	QuotaBackOff func() backoff.BackOff
}

func (o ThrottleOptions) withDefaults() ThrottleOptions {
	o.MaxAttempts = coalesce(o.MaxAttempts, defaultMaxAttempts)
	o.Wait = coalesce(o.Wait, defaultThrottleWait)
	o.Margin = coalesce(o.Margin, defaultMargin)
	o.TryWindow = coalesce(o.TryWindow, defaultTryWindow)
	if o.QuotaBackOff == nil {
		o.QuotaBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(defaultQuotaWait) }
	}
	return o
}

// Throttler caps calls to a quota-bound resource with a counter shared by
// every process using the same store.
type Throttler struct {
	st    store.Counters
	opts  ThrottleOptions
	log   Logger
	hooks Hooks
	sleep func(context.Context, time.Duration) error
}

func NewThrottler(st store.Counters, opts ThrottleOptions, log Logger, hooks Hooks) *Throttler {
	if log == nil {
		log = NopLogger{}
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Throttler{st: st, opts: opts.withDefaults(), log: log, hooks: hooks, sleep: sleepCtx}
}

// Throttle runs action once the counter at key is below quota, then counts
// the call with a TTL of interval+Margin. While the counter is at quota it
// waits without consuming a slot. Upstream quota errors (IsQuotaExceeded) are
// retried after QuotaBackOff; any other action error is returned as is.
// Running out of attempts returns *ThrottleExhaustedError.
func (t *Throttler) Throttle(ctx context.Context, key string, quota int64, interval time.Duration, name string, action func(context.Context) error) error {
	if err := validateThrottle(key, quota, action); err != nil {
		return err
	}
	if interval <= 0 {
		return invalidf("non-positive interval for %q", key)
	}

	f := Fields{"key": key, "name": name, "request_id": uuid.NewString()}
	bo := t.opts.QuotaBackOff()
	bo.Reset()

	attempts := 0
	for attempts < t.opts.MaxAttempts {
		attempts++
		used, err := t.st.GetInt(ctx, key)
		if err != nil {
			return err
		}
		if used >= quota {
			t.hooks.ThrottleWait(key)
			t.log.Debug("throttle at quota, waiting", withField(f, "attempt", attempts))
			if err := t.sleep(ctx, t.opts.Wait); err != nil {
				return err
			}
			continue
		}

		err = action(ctx)
		if err == nil {
			if _, err := t.st.IncrExpire(ctx, key, interval+t.opts.Margin); err != nil {
				// the action already ran; an uncounted call only loosens the window
				t.log.Warn("throttle counter update failed", withField(f, "err", err))
			}
			return nil
		}
		if !IsQuotaExceeded(err) {
			t.log.Error("throttled action failed", withField(f, "err", err))
			return err
		}

		t.hooks.ThrottleUpstreamQuota(key)
		d := bo.NextBackOff()
		t.log.Warn("upstream quota exceeded", withField(f, "backoff", d))
		if d == backoff.Stop {
			break
		}
		if err := t.sleep(ctx, d); err != nil {
			return err
		}
	}

	t.hooks.ThrottleExhausted(key, attempts)
	t.log.Error("throttle attempts exhausted", withField(f, "attempts", attempts))
	return &ThrottleExhaustedError{Key: key, Attempts: attempts}
}

// TryThrottle counts the call first (the window starts at the first call and
// lasts TryWindow) and runs action only when the count is within quota.
// Rejection is (false, nil); it never waits. Windows are approximate at their
// boundaries.
func (t *Throttler) TryThrottle(ctx context.Context, key string, quota int64, action func(context.Context) error) (bool, error) {
	if err := validateThrottle(key, quota, action); err != nil {
		return false, err
	}
	n, err := t.st.Incr(ctx, key, t.opts.TryWindow)
	if err != nil {
		return false, err
	}
	if n > quota {
		t.hooks.TryThrottleRejected(key)
		t.log.Debug("try-throttle rejected", Fields{"key": key, "count": n, "quota": quota})
		return false, nil
	}
	return true, action(ctx)
}

// Used returns the current counter value at key.
func (t *Throttler) Used(ctx context.Context, key string) (int64, error) {
	return t.st.GetInt(ctx, key)
}

// Throttle is the value-returning form of (*Throttler).Throttle.
func Throttle[R any](ctx context.Context, t *Throttler, key string, quota int64, interval time.Duration, name string, action func(context.Context) (R, error)) (R, error) {
	var out R
	if action == nil {
		return out, invalidf("nil action for %q", key)
	}
	err := t.Throttle(ctx, key, quota, interval, name, func(ctx context.Context) error {
		r, err := action(ctx)
		if err == nil {
			out = r
		}
		return err
	})
	return out, err
}

// TryThrottle is the value-returning form of (*Throttler).TryThrottle.
func TryThrottle[R any](ctx context.Context, t *Throttler, key string, quota int64, action func(context.Context) (R, error)) (R, bool, error) {
	var out R
	if action == nil {
		return out, false, invalidf("nil action for %q", key)
	}
	ok, err := t.TryThrottle(ctx, key, quota, func(ctx context.Context) error {
		r, err := action(ctx)
		if err == nil {
			out = r
		}
		return err
	})
	return out, ok, err
}

func validateThrottle(key string, quota int64, action func(context.Context) error) error {
	switch {
	case key == "":
		return invalidf("empty throttle key")
	case quota <= 0:
		return invalidf("non-positive quota %d for %q", quota, key)
	case action == nil:
		return invalidf("nil action for %q", key)
	}
	return nil
}

func withField(f Fields, k string, v any) Fields {
	out := make(Fields, len(f)+1)
	for fk, fv := range f {
		out[fk] = fv
	}
	out[k] = v
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-tm.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
