// Package ratelimit throttles interactive claim actions per user with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// DefaultIdleTTL is how long an untouched user bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter keeps one token bucket per user id.
// Buckets idle for longer than the TTL are swept in the background.
type UserLimiter struct {
	mu      sync.Mutex
	buckets map[int64]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing rps actions per second per user, with bursts
// of up to burst actions.
func New(rps float64, burst int) *UserLimiter {
	l := newLimiter(rps, burst, DefaultIdleTTL)
	go l.sweepLoop(l.idleTTL)
	return l
}

func newLimiter(rps float64, burst int, idleTTL time.Duration) *UserLimiter {
	return &UserLimiter{
		buckets: make(map[int64]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Allow reports whether userID may act now. It never blocks.
func (l *UserLimiter) Allow(userID int64) bool {
	return l.get(userID).Allow()
}

// Check is Allow as an error: a RATE_LIMITED domain error when the user is over budget.
func (l *UserLimiter) Check(userID int64) error {
	if !l.Allow(userID) {
		return domainerrors.RateLimited("too many claim actions, try again later")
	}
	return nil
}

// Wait blocks until userID may act or ctx is done.
func (l *UserLimiter) Wait(ctx context.Context, userID int64) error {
	return l.get(userID).Wait(ctx)
}

// Len returns the number of tracked users.
func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *UserLimiter) get(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// sweep drops buckets idle for longer than the TTL.
func (l *UserLimiter) sweep() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for userID, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, userID)
		}
	}
}

func (l *UserLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// Stop ends the background sweep. Safe to call more than once.
func (l *UserLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}
