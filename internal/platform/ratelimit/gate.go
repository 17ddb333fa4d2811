package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Gate bounds outbound calls two ways at once: at most maxConcurrent
// acquisitions may be outstanding, and consecutive grants are spaced at
// least minInterval apart even when slots are free. Waiters are admitted
// in strict FIFO order.
type Gate struct {
	mu            sync.Mutex
	maxConcurrent int
	minInterval   time.Duration
	active        int
	lastGrant     time.Time
	waiters       []*waiter
	timer         *time.Timer
	now           func() time.Time
}

type waiter struct {
	ready chan struct{}
}

func NewGate(maxConcurrent int, minInterval time.Duration) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}
	return &Gate{
		maxConcurrent: maxConcurrent,
		minInterval:   minInterval,
		now:           time.Now,
	}
}

// Acquire blocks until a slot and the interval condition are both
// satisfied, or the context is cancelled. Every successful Acquire must be
// paired with Release on all exit paths or the slot is lost.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate gate acquire: %w", err)
	}

	g.mu.Lock()
	if len(g.waiters) == 0 && g.tryGrantLocked() {
		g.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	g.waiters = append(g.waiters, w)
	g.scheduleDispatchLocked()
	g.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-w.ready:
			// Granted concurrently with cancellation; give the slot back
			// so the gate does not leak capacity.
			g.releaseLocked()
			g.mu.Unlock()
			return fmt.Errorf("rate gate acquire: %w", ctx.Err())
		default:
		}
		for i, item := range g.waiters {
			if item == w {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				break
			}
		}
		g.mu.Unlock()
		return fmt.Errorf("rate gate acquire: %w", ctx.Err())
	}
}

// Release frees a concurrency slot and wakes the next eligible waiter.
func (g *Gate) Release() {
	g.mu.Lock()
	g.releaseLocked()
	g.mu.Unlock()
}

func (g *Gate) releaseLocked() {
	if g.active > 0 {
		g.active--
	}
	g.dispatchLocked()
}

// tryGrantLocked admits the caller when a slot is free and the interval
// since the previous grant has elapsed.
func (g *Gate) tryGrantLocked() bool {
	if g.active >= g.maxConcurrent {
		return false
	}
	now := g.now()
	if g.minInterval > 0 && !g.lastGrant.IsZero() && now.Sub(g.lastGrant) < g.minInterval {
		return false
	}
	g.active++
	g.lastGrant = now
	return true
}

func (g *Gate) dispatchLocked() {
	for len(g.waiters) > 0 {
		if !g.tryGrantLocked() {
			g.scheduleDispatchLocked()
			return
		}
		head := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(head.ready)
	}
}

// scheduleDispatchLocked arms a timer for the moment the interval
// condition next clears. Slot-bound waiters are woken by Release instead.
func (g *Gate) scheduleDispatchLocked() {
	if len(g.waiters) == 0 || g.active >= g.maxConcurrent || g.minInterval <= 0 {
		return
	}
	wait := g.minInterval - g.now().Sub(g.lastGrant)
	if wait <= 0 {
		wait = time.Millisecond
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(wait, func() {
		g.mu.Lock()
		g.dispatchLocked()
		g.mu.Unlock()
	})
}

// Active reports the number of granted-but-unreleased acquisitions.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
