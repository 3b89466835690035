/**
 * @description
 * This file implements the session pool: a fixed set of independently
 * rate-limit-tracked channels to the game API. Every request against the
 * upstream goes through an acquired slot, which enforces a minimum spacing
 * between uses of the same slot and per-slot exponential backoff once the
 * upstream starts throttling.
 *
 * @notes
 * - Slot state is mutated only under the pool's mutex. Waiting happens
 *   outside the lock; the slot's next-use time is stamped before release so
 *   concurrent acquirers can never schedule two uses of one slot closer
 *   together than the minimum spacing.
 */

package app

import (
	"context"
	"sync"
	"time"
)

// SessionPool hands out the least-recently-used non-throttled slot, or waits
// for the soonest slot to clear when every slot is throttled. The bounded
// wait (minimum remaining backoff across slots) means throughput degrades
// gracefully instead of wedging when the upstream is fully unavailable.
type SessionPool struct {
	mu    sync.Mutex
	slots []sessionSlot

	minSpacing  time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type sessionSlot struct {
	// lastUsed is the scheduled time of the slot's most recent use. It may
	// sit in the future while the acquirer is still sleeping toward it.
	lastUsed     time.Time
	limitedUntil time.Time
	backoff      time.Duration
}

// NewSessionPool creates a pool of slotCount independent slots.
func NewSessionPool(slotCount int, minSpacing, baseBackoff, maxBackoff time.Duration) *SessionPool {
	if slotCount <= 0 {
		slotCount = 1
	}
	slots := make([]sessionSlot, slotCount)
	for i := range slots {
		slots[i].backoff = baseBackoff
	}
	return &SessionPool{
		slots:       slots,
		minSpacing:  minSpacing,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire returns the index of a slot cleared for use, sleeping out any
// remaining spacing or backoff first. It prefers the least recently used
// slot whose rate limit has passed; when every slot is throttled it waits
// for the soonest one.
func (p *SessionPool) Acquire(ctx context.Context) (int, error) {
	p.mu.Lock()
	now := p.now()

	idx := -1
	for i := range p.slots {
		s := &p.slots[i]
		if now.Before(s.limitedUntil) {
			continue
		}
		// First observation that the limit cleared resets the backoff.
		if !s.limitedUntil.IsZero() {
			s.backoff = p.baseBackoff
			s.limitedUntil = time.Time{}
		}
		if idx < 0 || s.lastUsed.Before(p.slots[idx].lastUsed) {
			idx = i
		}
	}

	var wait time.Duration
	if idx >= 0 {
		s := &p.slots[idx]
		next := s.lastUsed.Add(p.minSpacing)
		if next.After(now) {
			wait = next.Sub(now)
			s.lastUsed = next
		} else {
			s.lastUsed = now
		}
	} else {
		// Every slot throttled: take the one clearing soonest.
		idx = 0
		for i := range p.slots {
			if p.slots[i].limitedUntil.Before(p.slots[idx].limitedUntil) {
				idx = i
			}
		}
		s := &p.slots[idx]
		wait = s.limitedUntil.Sub(now)
		if wait < 0 {
			wait = 0
		}
		s.backoff = p.baseBackoff
		s.limitedUntil = time.Time{}
		s.lastUsed = now.Add(wait)
	}
	p.mu.Unlock()

	if err := p.sleep(ctx, wait); err != nil {
		return 0, err
	}
	return idx, nil
}

// MarkRateLimited records that the upstream throttled a request issued on
// this slot. The slot is blocked for its current backoff, which then doubles
// up to the configured ceiling. Other slots are unaffected.
func (p *SessionPool) MarkRateLimited(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.slots) {
		return
	}
	s := &p.slots[slot]
	s.limitedUntil = p.now().Add(s.backoff)
	s.backoff *= 2
	if s.backoff > p.maxBackoff {
		s.backoff = p.maxBackoff
	}
}

// backoffOf is a test hook exposing a slot's current backoff.
func (p *SessionPool) backoffOf(slot int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[slot].backoff
}
