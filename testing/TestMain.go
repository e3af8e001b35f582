// Package testing switches inkpress into test mode when blank-imported by a
// test binary, so entrypoints can be exercised without live backends.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/inkpress/inkpress/internal/app"
)

// testEnv holds values applied unless the environment already sets them.
var testEnv = map[string]string{
	"JWT_ACCESS_SECRET":  "test-access-secret",
	"JWT_REFRESH_SECRET": "test-refresh-secret",
}

var setup sync.Once

func applyTestEnv() {
	setup.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "1")
		for key, value := range testEnv {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	applyTestEnv()
}

// TestMain can be re-exported by packages that define no TestMain of their own.
func TestMain(m *stdtesting.M) {
	applyTestEnv()
	os.Exit(m.Run())
}
