package health

import (
	"context"
	"fmt"
	"runtime"
)

// GoroutineCountCheck fails when the process holds more goroutines than
// the given threshold, a cheap proxy for leaked work.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return fmt.Errorf("too many goroutines: %d > %d", count, threshold)
		}
		return nil
	}
}

// Pinger is satisfied by pgxpool.Pool among others.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck probes connectivity to the backing database.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}
