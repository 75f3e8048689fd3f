package auth

import (
	"context"
	"sync"
	"time"
)

// LoginRateLimiter limits login attempts per client IP
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*ipAttempts
	now      func() time.Time

	maxAttempts int           // Max attempts before blocking
	window      time.Duration // Time window for counting attempts
	blockTime   time.Duration // How long to block after max attempts
}

type ipAttempts struct {
	count     int
	firstTime time.Time
	blockEnd  time.Time
}

// NewLoginRateLimiter creates a limiter allowing maxAttempts per window
// and blocking for blockTime afterwards. Zero values fall back to 5
// attempts per 2 minutes and a 5 minute block.
func NewLoginRateLimiter(maxAttempts int, window, blockTime time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 2 * time.Minute
	}
	if blockTime <= 0 {
		blockTime = 5 * time.Minute
	}
	return &LoginRateLimiter{
		attempts:    make(map[string]*ipAttempts),
		now:         time.Now,
		maxAttempts: maxAttempts,
		window:      window,
		blockTime:   blockTime,
	}
}

// Allow counts an attempt from ip. When blocked it returns false and the
// number of seconds until the block ends.
func (rl *LoginRateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	att, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = &ipAttempts{count: 1, firstTime: now}
		return true, 0
	}

	if !att.blockEnd.IsZero() {
		if now.Before(att.blockEnd) {
			return false, int(att.blockEnd.Sub(now).Seconds())
		}
		*att = ipAttempts{count: 1, firstTime: now}
		return true, 0
	}

	if now.Sub(att.firstTime) > rl.window {
		*att = ipAttempts{count: 1, firstTime: now}
		return true, 0
	}

	att.count++
	if att.count > rl.maxAttempts {
		att.blockEnd = now.Add(rl.blockTime)
		return false, int(rl.blockTime.Seconds())
	}

	return true, 0
}

// Reset clears the counter for ip after a successful login
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// Run drops stale entries every 10 minutes until ctx is done
func (rl *LoginRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *LoginRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, att := range rl.attempts {
		blocked := !att.blockEnd.IsZero()
		if (!blocked && now.Sub(att.firstTime) > rl.window) || (blocked && now.After(att.blockEnd)) {
			delete(rl.attempts, ip)
		}
	}
}
