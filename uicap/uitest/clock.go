package uitest

import (
	"context"
	"sync"
	"time"
)

// Clock is a virtual clock: Sleep advances Now instantly.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
	// OnSleep, if set, runs after every Sleep; tests use it to make the page
	// change while the exporter waits.
	OnSleep func(now time.Time)
}

// NewClock starts at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	now, hook := c.now, c.OnSleep
	c.mu.Unlock()
	if hook != nil {
		hook(now)
	}
	return ctx.Err()
}

// Slept is the total virtual time slept.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Dialog is a scripted native dialog. Every call is appended to Calls.
type Dialog struct {
	mu    sync.Mutex
	Calls []string
	// OnSave runs for SaveAs; typically writes a file at path.
	OnSave func(path string) error
	// FailPrint makes ConfirmPrint fail.
	FailPrint error
}

func (d *Dialog) ConfirmPrint(context.Context) error {
	d.mu.Lock()
	d.Calls = append(d.Calls, "print")
	d.mu.Unlock()
	return d.FailPrint
}

func (d *Dialog) SaveAs(_ context.Context, path string) error {
	d.mu.Lock()
	d.Calls = append(d.Calls, "save:"+path)
	hook := d.OnSave
	d.mu.Unlock()
	if hook != nil {
		return hook(path)
	}
	return nil
}
