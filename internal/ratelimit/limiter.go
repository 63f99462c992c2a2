// Package ratelimit provides per-client rate limiting for the HTTP API.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Requests per second per client
	Burst           int           // Burst size per client
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig provides sensible defaults for a single-user note service.
var DefaultConfig = Config{
	RPS:             50,
	Burst:           100,
	CleanupInterval: time.Hour,
}

// limiterEntry holds a rate limiter and tracks its last usage.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter manages per-client rate limiting.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	config   Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a rate limiter with the given configuration and
// starts a background goroutine that evicts idle clients.
func NewRateLimiter(config Config) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from the given client is within limits.
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.GetLimiter(clientID).Allow()
}

// GetLimiter returns the limiter for the given client, creating one if
// necessary.
func (rl *RateLimiter) GetLimiter(clientID string) *rate.Limiter {
	// Fast path: limiter already exists.
	rl.mu.RLock()
	entry, exists := rl.limiters[clientID]
	if exists {
		entry.lastUsed = time.Now()
		rl.mu.RUnlock()
		return entry.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock.
	entry, exists = rl.limiters[clientID]
	if exists {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)
	rl.limiters[clientID] = &limiterEntry{
		limiter:  limiter,
		lastUsed: time.Now(),
	}

	return limiter
}

// Cleanup removes limiters that have been idle for longer than the cleanup
// interval. Called periodically by the background goroutine.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	for clientID, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, clientID)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of active limiters. Useful for tests and monitoring.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
