package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "DASH_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the DASH_TEST_MODE flag once.
func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether runtime side effects such as rate limiting
// and external caches should be skipped.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after environment changes. Later
// InTestMode calls keep the refreshed value.
func RefreshTestMode() {
	detected := false
	testModeOnce.Do(func() {
		detectTestMode()
		detected = true
	})
	if !detected {
		detectTestMode()
	}
}
