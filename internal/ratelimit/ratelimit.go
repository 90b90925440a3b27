// Package ratelimit bounds request rate per credential and source address.
// The limiter is an injected component rather than a process-wide global so
// tests can instantiate isolated instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a requests-per-minute budget per (credential, address)
// pair. Unused pairs are dropped after idleTTL.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perMinute int
	idleTTL   time.Duration
}

// New creates a limiter allowing perMinute requests per (credential, address)
// pair, with a burst equal to the full window budget.
func New(perMinute int) *Limiter {
	return &Limiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		idleTTL:   3 * time.Minute,
	}
}

// Allow reports whether a request from the pair may proceed. When denied, the
// returned duration is how long the caller should wait before retrying.
func (l *Limiter) Allow(credentialID, addr string) (time.Duration, bool) {
	l.mu.Lock()
	key := credentialID + ":" + addr
	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute),
		}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	rsv := v.limiter.Reserve()
	if !rsv.OK() {
		return time.Minute, false
	}
	if delay := rsv.Delay(); delay > 0 {
		rsv.Cancel()
		return delay, false
	}
	return 0, true
}

// Start runs the idle-visitor cleanup loop until ctx is cancelled.
func (l *Limiter) Start(ctx context.Context) {
	logger := log.With().Str("component", "rate_limiter").Logger()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down rate limiter cleanup")
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if time.Since(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
		}
	}
}
