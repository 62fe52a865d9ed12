package httpapi

import (
	"sync"
	"time"
)

// loginLimiter is a sliding-window attempt counter keyed by client ip and by
// target email. It guards login and forgot-password. Login charges the email
// key only for failed credentials.
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
}

func newLoginLimiter(window time.Duration, max int) *loginLimiter {
	return &loginLimiter{
		window:  window,
		max:     max,
		entries: make(map[string][]time.Time),
	}
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.blockedLocked(key, now) {
		return false
	}
	l.recordLocked(key, now)
	return true
}

// Blocked reports whether key is at its limit without charging it.
func (l *loginLimiter) Blocked(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockedLocked(key, now)
}

// Record charges key without checking it.
func (l *loginLimiter) Record(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockedLocked(key, now)
	l.recordLocked(key, now)
}

// blockedLocked also drops attempts that fell out of the window.
func (l *loginLimiter) blockedLocked(key string, now time.Time) bool {
	cutoff := now.Add(-l.window)
	ts := l.entries[key]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.entries, key)
		return false
	}
	l.entries[key] = kept
	return len(kept) >= l.max
}

func (l *loginLimiter) recordLocked(key string, now time.Time) {
	l.entries[key] = append(l.entries[key], now)
	if len(l.entries) > 10000 {
		l.sweepLocked(now.Add(-l.window))
	}
}

// allowAll charges every key, even after one has already refused.
func (l *loginLimiter) allowAll(now time.Time, keys ...string) bool {
	ok := true
	for _, k := range keys {
		if !l.Allow(k, now) {
			ok = false
		}
	}
	return ok
}

func (l *loginLimiter) sweepLocked(cutoff time.Time) {
	for k, ts := range l.entries {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.entries, k)
		}
	}
}
