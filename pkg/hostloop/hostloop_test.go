package hostloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestCallRunsOnLoop(t *testing.T) {
	l := startLoop(t)

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Call(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !ran {
		t.Error("fn did not run")
	}
}

func TestAfterFunc(t *testing.T) {
	l := startLoop(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.AfterFunc(10*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 10*time.Millisecond {
			t.Errorf("fired after %v, want at least 10ms", at.Sub(start))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestAfterFuncCancel(t *testing.T) {
	l := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{}, 1)
	if err := l.Call(ctx, func() {
		stop := l.AfterFunc(0, func() { fired <- struct{}{} })
		stop()
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	// a later timer on the same loop proves the cancelled one had its turn
	later := make(chan struct{})
	l.AfterFunc(20*time.Millisecond, func() { close(later) })
	<-later

	select {
	case <-fired:
		t.Error("cancelled timer fired")
	default:
	}
}

func TestPostAfterClose(t *testing.T) {
	l, err := Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	l.Close()

	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Post() error = %v, want %v", err, ErrClosed)
	}
}

func TestAfterFuncCancelAfterFire(t *testing.T) {
	l := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{})
	var stop func()
	if err := l.Call(ctx, func() {
		stop = l.AfterFunc(0, func() { close(fired) })
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	<-fired

	if err := l.Call(ctx, stop); err != nil {
		t.Fatalf("cancel after fire: %v", err)
	}
}

func TestAfterFuncOrder(t *testing.T) {
	l := startLoop(t)

	order := make(chan int, 2)
	l.AfterFunc(30*time.Millisecond, func() { order <- 2 })
	l.AfterFunc(5*time.Millisecond, func() { order <- 1 })

	for want := 1; want <= 2; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Errorf("timer %d fired, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timers did not fire")
		}
	}
}
