// Package ratelimit implements sliding-window admission control for outbound
// calls to the upstream platform. Each traffic class (default, search, login)
// owns its own limiter with its own budget; the window bookkeeping is the one
// piece of shared mutable state in the agent and is mutex-guarded.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

const logPrefix = "ratelimit:limiter"

// Limiter bounds admissions to MaxRequests per rolling Window.
type Limiter struct {
	name        string
	maxRequests int
	window      time.Duration

	mu         sync.Mutex
	timestamps []time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a named limiter admitting maxRequests per window.
func New(name string, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		name:        name,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Name returns the limiter's traffic class name.
func (l *Limiter) Name() string { return l.name }

// prune drops timestamps that left the window. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.timestamps[:0]
	for _, t := range l.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.timestamps = kept
}

// tryAdmit admits the caller if the window has room, recording the admission.
// On rejection it returns the wait until the oldest surviving timestamp
// exits the window.
func (l *Limiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.timestamps) < l.maxRequests {
		l.timestamps = append(l.timestamps, now)
		return 0, true
	}

	retryAfter := l.timestamps[0].Add(l.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return retryAfter, false
}

// TryAcquire is the fail-fast policy: it admits immediately or returns a
// RateLimitError carrying the computed retry_after, leaving the retry
// decision to an outer retry engine.
func (l *Limiter) TryAcquire() error {
	retryAfter, ok := l.tryAdmit()
	if ok {
		return nil
	}
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return apierror.RateLimit(
		fmt.Sprintf("Rate limit exceeded for %s: %d requests per %s", l.name, l.maxRequests, l.window),
		seconds,
	).WithDetail("limiter", l.name)
}

// Acquire is the queuing policy: the caller suspends until a slot opens in
// the window or the context expires. Used for steady background throughput.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		retryAfter, ok := l.tryAdmit()
		if ok {
			return nil
		}

		slog.Debug(fmt.Sprintf("%s - %s window full, waiting %s", logPrefix, l.name, retryAfter.Round(time.Millisecond)))

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apierror.Timeout("rate limiter wait interrupted: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
}

// Remaining returns the unused budget within the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return l.maxRequests - len(l.timestamps)
}

// ResetAt returns when the oldest in-window admission expires, freeing a
// slot. The zero time means the window is not full.
func (l *Limiter) ResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	if len(l.timestamps) < l.maxRequests {
		return time.Time{}
	}
	return l.timestamps[0].Add(l.window)
}

// Set groups the per-class limiters used by the upstream facade.
type Set struct {
	// Default covers generic reads (profile, job details, feed).
	Default *Limiter
	// Search covers job search, typically the most throttled class upstream.
	Search *Limiter
	// Login covers authentication. The tightest budget: repeated failed
	// logins risk upstream account lockout.
	Login *Limiter
}

// Budgets configures a Set. Zero values fall back to the standard budgets.
type Budgets struct {
	DefaultMax    int
	DefaultWindow time.Duration
	SearchMax     int
	SearchWindow  time.Duration
	LoginMax      int
	LoginWindow   time.Duration
}

// NewSet builds the per-class limiters.
func NewSet(b Budgets) *Set {
	if b.DefaultMax <= 0 {
		b.DefaultMax = 30
	}
	if b.DefaultWindow <= 0 {
		b.DefaultWindow = time.Minute
	}
	if b.SearchMax <= 0 {
		b.SearchMax = 5
	}
	if b.SearchWindow <= 0 {
		b.SearchWindow = time.Minute
	}
	if b.LoginMax <= 0 {
		b.LoginMax = 3
	}
	if b.LoginWindow <= 0 {
		b.LoginWindow = 5 * time.Minute
	}
	return &Set{
		Default: New("default", b.DefaultMax, b.DefaultWindow),
		Search:  New("search", b.SearchMax, b.SearchWindow),
		Login:   New("login", b.LoginMax, b.LoginWindow),
	}
}
