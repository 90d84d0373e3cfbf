package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antibyte/cpcrun/pkg/runloop"
	"github.com/antibyte/cpcrun/pkg/session"
)

// syncBuffer is a bytes.Buffer safe for the session goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, keys, source string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out syncBuffer
	err := Run(ctx, strings.NewReader(keys), &out, source, session.Options{})
	return out.String(), err
}

func TestRunPrintsOutput(t *testing.T) {
	out, err := run(t, "", "10 PRINT \"A\"\n20 PRINT \"B\"")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "A\r\nB\r\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRunFeedsKeys(t *testing.T) {
	out, err := run(t, "BOB\r", "10 INPUT A$\n20 PRINT \"HI \";A$")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := "? BOB\r\nHI BOB\r\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRunInterrupted(t *testing.T) {
	_, err := run(t, "\x03", "10 CALL &BB18")
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("Run() error = %v, want %v", err, ErrInterrupted)
	}
}

func TestRunReportsCompileError(t *testing.T) {
	_, err := run(t, "", "10 GOTO 99")
	var compileErr *runloop.CompileError
	if !errors.As(err, &compileErr) || compileErr.Message != "Line does not exist" {
		t.Errorf("Run() error = %v, want missing line", err)
	}
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &printer{out: &out}
	p.update("AB")
	p.update("ABC")
	p.update("X")
	if want := "ABC\x1b[2J\x1b[HX"; out.String() != want {
		t.Errorf("written = %q, want %q", out.String(), want)
	}
}
