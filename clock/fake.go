package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time only moves when Advance is
// called; sleepers and timeout timers fire when the fake time passes their
// deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
	changed chan struct{}
}

type fakeWaiter struct {
	at time.Time
	ch chan struct{}
}

// NewFake creates a fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{
		now:     start,
		changed: make(chan struct{}),
	}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake time forward, releasing any sleepers or timers whose
// deadline has passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.at.After(f.now) {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
	f.signalLocked()
}

// BlockUntil blocks until at least n sleepers or timers are waiting on the
// fake clock. Use it to synchronize with a goroutine before Advance.
func (f *Fake) BlockUntil(n int) {
	for {
		f.mu.Lock()
		if len(f.waiters) >= n {
			f.mu.Unlock()
			return
		}
		ch := f.changed
		f.mu.Unlock()
		<-ch
	}
}

// Sleep blocks until Advance moves the fake time past the deadline or ctx is
// cancelled.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	w := f.addWaiter(d)

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		f.removeWaiter(w)
		return ctx.Err()
	}
}

// RunTimeout runs op racing a fake timer. The op receives a context cancelled
// when the fake deadline fires.
func (f *Fake) RunTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- op(opCtx)
	}()

	w := f.addWaiter(timeout)

	select {
	case err := <-done:
		f.removeWaiter(w)
		return err
	case <-w.ch:
		return ErrTimeout
	case <-ctx.Done():
		f.removeWaiter(w)
		return ctx.Err()
	}
}

func (f *Fake) addWaiter(d time.Duration) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		at: f.now.Add(d),
		ch: make(chan struct{}),
	}
	f.waiters = append(f.waiters, w)
	f.signalLocked()
	return w
}

func (f *Fake) removeWaiter(w *fakeWaiter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, cur := range f.waiters {
		if cur == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			break
		}
	}
	f.signalLocked()
}

func (f *Fake) signalLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

var _ Clock = (*Fake)(nil)
