package depcache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrInvalidArgument marks programming errors (empty key, nil collection,
	// non-positive quota). Returned before any store call.
	ErrInvalidArgument = errors.New("depcache: invalid argument")

	// ErrQuotaExceeded can be returned (or wrapped) by a throttled action to
	// signal that the upstream resource rejected the call as over quota.
	ErrQuotaExceeded = errors.New("depcache: upstream quota exceeded")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ThrottleExhaustedError is returned when Throttle used every attempt without
// running the action successfully.
type ThrottleExhaustedError struct {
	Key      string
	Attempts int
}

func (e *ThrottleExhaustedError) Error() string {
	return fmt.Sprintf("throttle %q: gave up after %d attempts", e.Key, e.Attempts)
}

// ResetError collects per-key deletion failures of a dependency reset.
type ResetError struct {
	DepKey string
	Errs   []error
}

func (e *ResetError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("reset %q: %d failure(s): %s", e.DepKey, len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ResetError) Unwrap() []error { return e.Errs }

var upstreamQuotaCodes = map[string]struct{}{
	"TooManyRequestsException": {},
	"ThrottlingException":      {},
	"RequestLimitExceeded":     {},
}

// IsQuotaExceeded reports whether err means "the upstream rejected the call as
// over quota": ErrQuotaExceeded, an error with QuotaExceeded() true, or an AWS
// API error carrying a throttling code.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var q interface{ QuotaExceeded() bool }
	if errors.As(err, &q) && q.QuotaExceeded() {
		return true
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		_, ok := upstreamQuotaCodes[api.ErrorCode()]
		return ok
	}
	return false
}
