// Package globaltime provides a process-wide clock that tests can freeze.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// UTCDate returns the current UTC calendar date as YYYY-MM-DD. Remote
// object keys are partitioned by this value.
func UTCDate() string {
	return UTC().Format("2006-01-02")
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
