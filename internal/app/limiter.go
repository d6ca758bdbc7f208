package app

import (
	"sync"
	"time"

	"github.com/openmic/karaoke/internal/domain"
)

// SubmitLimiter caps song submissions per session over a sliding window,
// so one enthusiastic singer cannot flood the queue.
type SubmitLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
}

func NewSubmitLimiter(limit int, interval time.Duration) *SubmitLimiter {
	return &SubmitLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *SubmitLimiter) Allow(sid domain.SessionID) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[sid] = fresh
	return true
}

// Forget drops a session's submission history, e.g. on disconnect.
func (rl *SubmitLimiter) Forget(sid domain.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, sid)
}
