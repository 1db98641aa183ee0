package apirelay

import (
	"errors"
	"fmt"
)

// ErrMissingCredential reports that a route family requiring an upstream
// credential was invoked without one configured. It is raised before any
// cache lookup or quota consumption.
var ErrMissingCredential = errors.New("upstream credential is not configured")

// QuotaExceededError is returned when the daily quota guard denies an
// upstream call. The consumed budget is never refunded, so callers should
// not retry before ResetDay.
type QuotaExceededError struct {
	Limit     int
	Used      int
	Remaining int
	ResetDay  string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: %d/%d used for %s", e.Used, e.Limit, e.ResetDay)
}

// UpstreamError wraps a failed upstream call. Failed calls are not cached
// and still count against the daily quota.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream call failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream call failed with status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
