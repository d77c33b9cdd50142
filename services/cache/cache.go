package cache

import (
	"time"
)

// CacheService is a small key/value store with expiry. The fetch layer uses it
// to remember hosts that rate limited a sweep.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
