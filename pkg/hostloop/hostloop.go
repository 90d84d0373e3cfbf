// Package hostloop is the single goroutine a session runs on. Timers fire
// on it and key events and file results come back to it through Post, so
// the run loop never needs locks.
package hostloop

import (
	"context"
	"errors"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"

	"github.com/antibyte/cpcrun/pkg/logger"
)

// ErrClosed is returned when posting to a loop that has stopped.
var ErrClosed = errors.New("host loop closed")

// Loop wraps an event loop running on its own goroutine.
type Loop struct {
	loop   *eventloop.Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Start creates the event loop and runs it until ctx is cancelled or
// Close is called.
func Start(ctx context.Context) (*Loop, error) {
	el, err := eventloop.New()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		loop:   el,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		if err := el.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.RunLoopWarn("host loop stopped: %v", err)
		}
	}()
	return l, nil
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	return l.loop.Submit(fn)
}

// Call runs fn on the loop goroutine and waits until it returned.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop goroutine after d, using the loop's own
// timer heap. Cancel is meant for the loop goroutine; cancelling a timer
// that already ran is a no-op.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	id, err := l.loop.ScheduleTimer(d, fn)
	if err != nil {
		logger.RunLoopDebug("timer dropped: %v", err)
		return func() {}
	}
	return func() {
		err := l.loop.CancelTimer(id)
		if err != nil && !errors.Is(err, eventloop.ErrTimerNotFound) {
			logger.RunLoopDebug("cancel timer: %v", err)
		}
	}
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop and waits for its goroutine.
func (l *Loop) Close() {
	l.cancel()
	<-l.done
}
