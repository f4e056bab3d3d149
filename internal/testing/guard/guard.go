// Package guard switches the process into test mode when imported, so
// commands skip external side effects such as Redis connections.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DASH_TEST_MODE") == "" {
			_ = os.Setenv("DASH_TEST_MODE", "1")
		}
	})
}
