//go:build !unix

package storage

// acquireLock is a no-op where flock is unavailable.
func acquireLock(string) (func() error, error) {
	return func() error { return nil }, nil
}
