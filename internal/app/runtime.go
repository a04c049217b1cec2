package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv disables network side effects in the binaries when set to 1 or true.
const TestModeEnv = "STAYDESK_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func readTestMode() {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(TestModeEnv)))
	testMode.Store(v == "1" || v == "true")
}

// InTestMode reports whether the binaries should skip startup.
func InTestMode() bool {
	testModeOnce.Do(readTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	readTestMode()
}
