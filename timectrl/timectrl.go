// Package timectrl drives the propagation clock used to re-assess
// TLE-backed profiles.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock reports the time TLE profiles are propagated to.
type Clock interface {
	Now() time.Time
}

// Mode describes how the controller advances propagation time.
type Mode int

const (
	// RealTime follows the wall clock.
	RealTime Mode = iota
	// Accelerated advances by Step on every tick, independent of wall time.
	Accelerated
)

// Controller ticks at a wall-clock interval and notifies listeners with the
// current propagation time. It implements Clock.
type Controller struct {
	mu sync.RWMutex

	Tick time.Duration
	Step time.Duration
	Mode Mode

	current   time.Time
	wall      func() time.Time
	listeners []func(time.Time)
}

// NewController returns a RealTime controller ticking every tick.
func NewController(tick time.Duration) *Controller {
	return &Controller{Tick: tick, Mode: RealTime, wall: time.Now}
}

// NewAcceleratedController returns a controller that starts at start and
// advances by step per tick.
func NewAcceleratedController(start time.Time, tick, step time.Duration) *Controller {
	return &Controller{Tick: tick, Step: step, Mode: Accelerated, current: start, wall: time.Now}
}

// Now returns the current propagation time.
func (c *Controller) Now() time.Time {
	if c.Mode == RealTime {
		return c.wall()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// AddListener registers fn to run on every tick. Listeners run on the
// controller's goroutine in registration order.
func (c *Controller) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Run ticks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.advance()
		}
	}
}

func (c *Controller) advance() {
	c.mu.Lock()
	if c.Mode == Accelerated {
		c.current = c.current.Add(c.Step)
	}
	listeners := append([]func(time.Time){}, c.listeners...)
	c.mu.Unlock()

	now := c.Now()
	for _, fn := range listeners {
		fn(now)
	}
}
