// Package testutil holds shared test helpers.
package testutil

import (
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// NoDiff fails the test when want and got differ under go-cmp.
func NoDiff(t *testing.T, want, got any, opts []cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// ConcurrentTestReporter makes gomock safe to use from multiple goroutines.
// The stock reporter calls t.Fatalf off the test goroutine, which testing
// forbids: https://github.com/golang/mock/issues/145
type ConcurrentTestReporter struct {
	*testing.T
}

func NewConcurrentTestReporter(t *testing.T) *ConcurrentTestReporter {
	return &ConcurrentTestReporter{t}
}

func (r *ConcurrentTestReporter) Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
