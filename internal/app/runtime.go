package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv, when truthy, makes the inkpress and worker binaries return
// before dialing Postgres or Redis.
const TestModeEnv = "INKPRESS_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeRead sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether TestModeEnv was set when first checked.
func InTestMode() bool {
	testModeRead.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	testModeRead.Do(func() {})
	loadTestMode()
}
