// Package enginetest provides a manually driven clock for countdown tests.
package enginetest

import (
	"sync"
	"time"

	"evaluation-service/internal/engine"
)

// Clock is an engine.Clock whose time only moves when Advance is called.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*ticker]struct{}
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start, tickers: make(map[*ticker]struct{})}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker(time.Duration) engine.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ticker{clock: c, ch: make(chan time.Time, 1)}
	c.tickers[t] = struct{}{}
	return t
}

// Advance moves time forward by d and fires one tick on every live ticker,
// the way a throttled real ticker coalesces missed ticks into one.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	live := make([]*ticker, 0, len(c.tickers))
	for t := range c.tickers {
		live = append(live, t)
	}
	c.mu.Unlock()

	for _, t := range live {
		select {
		case t.ch <- now:
		default:
		}
	}
}

// Tickers reports how many tickers have not been stopped.
func (c *Clock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type ticker struct {
	clock *Clock
	ch    chan time.Time
}

func (t *ticker) C() <-chan time.Time { return t.ch }

func (t *ticker) Stop() {
	t.clock.mu.Lock()
	delete(t.clock.tickers, t)
	t.clock.mu.Unlock()
}
