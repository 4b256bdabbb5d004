package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimiter provides rate limiting for login attempts
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	// Configuration
	maxAttempts int
	window      time.Duration
	blockTime   time.Duration

	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	running bool
}

type attemptInfo struct {
	count     int
	firstTry  time.Time
	blockedAt time.Time
}

// NewRateLimiter creates a new rate limiter
// maxAttempts: max login attempts within the window
// window: time window for counting attempts
// blockTime: how long to block after exceeding max attempts
// The cleanup goroutine runs until Close is called.
func NewRateLimiter(maxAttempts int, window, blockTime time.Duration) *RateLimiter {
	rl := newRateLimiter(maxAttempts, window, blockTime, time.Now)
	rl.running = true
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

func newRateLimiter(maxAttempts int, window, blockTime time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]*attemptInfo),
		maxAttempts: maxAttempts,
		window:      window,
		blockTime:   blockTime,
		now:         now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Allow records an attempt for key (a client IP) and reports whether it may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	info, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &attemptInfo{count: 1, firstTry: now}
		return true
	}

	// Check if blocked
	if !info.blockedAt.IsZero() {
		if now.Sub(info.blockedAt) < rl.blockTime {
			return false
		}
		// Block expired, reset
		info.count = 1
		info.firstTry = now
		info.blockedAt = time.Time{}
		return true
	}

	// Check if window expired
	if now.Sub(info.firstTry) > rl.window {
		info.count = 1
		info.firstTry = now
		return true
	}

	info.count++
	if info.count > rl.maxAttempts {
		info.blockedAt = now
		return false
	}

	return true
}

// RecordSuccess resets the attempt count for successful login
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// RemainingAttempts returns the remaining attempts for a key
func (rl *RateLimiter) RemainingAttempts(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.attempts[key]
	if !exists {
		return rl.maxAttempts
	}

	now := rl.now()
	if !info.blockedAt.IsZero() {
		if now.Sub(info.blockedAt) < rl.blockTime {
			return 0
		}
		return rl.maxAttempts
	}
	if now.Sub(info.firstTry) > rl.window {
		return rl.maxAttempts
	}

	remaining := rl.maxAttempts - info.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BlockedUntil returns when the block expires, or zero time if not blocked
func (rl *RateLimiter) BlockedUntil(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.attempts[key]
	if !exists || info.blockedAt.IsZero() {
		return time.Time{}
	}

	blockedUntil := info.blockedAt.Add(rl.blockTime)
	if rl.now().After(blockedUntil) {
		return time.Time{}
	}
	return blockedUntil
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stop)
	})
	if rl.running {
		<-rl.done
	}
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries whose window and block have both expired
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, info := range rl.attempts {
		windowExpired := now.Sub(info.firstTry) > rl.window
		blockExpired := info.blockedAt.IsZero() || now.Sub(info.blockedAt) > rl.blockTime
		if windowExpired && blockExpired {
			delete(rl.attempts, key)
		}
	}
}

// Middleware rate limits the requests for which match returns true.
// A nil match limits every request.
func (rl *RateLimiter) Middleware(match func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if match != nil && !match(c) {
				return next(c)
			}

			key := c.RealIP()
			if !rl.Allow(key) {
				return rl.TooManyRequests(c, key)
			}

			return next(c)
		}
	}
}

// TooManyRequests writes the 429 response for a blocked key
func (rl *RateLimiter) TooManyRequests(c echo.Context, key string) error {
	retryAfter := int(rl.BlockedUntil(key).Sub(rl.now()).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"status":      "error",
		"message":     "Too many login attempts.",
		"retry_after": retryAfter,
	})
}
