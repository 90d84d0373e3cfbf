package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newManagedSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestManagerLimitsSessionsPerIP(t *testing.T) {
	m := NewManager(Limits{MaxSessionsPerIP: 2})
	defer m.CloseAll()

	for i := 0; i < 2; i++ {
		if err := m.Register(newManagedSession(t), "10.0.0.1"); err != nil {
			t.Fatalf("Register() #%d error = %v", i, err)
		}
	}
	extra := newManagedSession(t)
	defer extra.Close()
	if err := m.Register(extra, "10.0.0.1"); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("Register() third session error = %v, want %v", err, ErrTooManySessions)
	}
	if err := m.Register(extra, "10.0.0.2"); err != nil {
		t.Errorf("Register() from another IP error = %v", err)
	}
	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestManagerRateLimit(t *testing.T) {
	m := NewManager(Limits{MaxMessages: 2})
	defer m.CloseAll()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s := newManagedSession(t)
	if err := m.Register(s, "ip"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Touch(s.ID); err != nil {
			t.Fatalf("Touch() #%d error = %v", i, err)
		}
	}
	if err := m.Touch(s.ID); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Touch() over the limit error = %v, want %v", err, ErrRateLimited)
	}

	now = now.Add(time.Minute)
	if err := m.Touch(s.ID); err != nil {
		t.Errorf("Touch() in the next minute error = %v", err)
	}
}

func TestManagerGetAndRemove(t *testing.T) {
	m := NewManager(Limits{})
	s := newManagedSession(t)
	if err := m.Register(s, "ip"); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if err := m.Remove(s.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Remove error = %v, want %v", err, ErrSessionNotFound)
	}
	if err := m.Remove(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Remove() error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestManagerCloseIdle(t *testing.T) {
	m := NewManager(Limits{})
	defer m.CloseAll()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	idle := newManagedSession(t)
	active := newManagedSession(t)
	for _, s := range []*Session{idle, active} {
		if err := m.Register(s, "ip"); err != nil {
			t.Fatal(err)
		}
	}

	now = now.Add(20 * time.Minute)
	if err := m.Touch(active.ID); err != nil {
		t.Fatal(err)
	}
	if got := m.CloseIdle(10 * time.Minute); got != 1 {
		t.Errorf("CloseIdle() = %d, want 1", got)
	}
	if _, err := m.Get(active.ID); err != nil {
		t.Errorf("active session was closed: %v", err)
	}
}
