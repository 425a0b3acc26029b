package shadow

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify tests in this package do not leak
// unexpected goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
