// Package console runs a program in the local terminal instead of a
// browser. stdin is switched to raw mode so keys reach the machine one
// by one.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/antibyte/cpcrun/pkg/basic"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/session"
	"github.com/antibyte/cpcrun/pkg/shared"
)

const keyInterrupt = 0x03 // Ctrl-C

// ErrInterrupted is returned when the user pressed Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// printer turns the full output texts the session publishes into
// incremental writes.
type printer struct {
	out     io.Writer
	printed string
}

func (p *printer) update(text string) {
	if strings.HasPrefix(text, p.printed) {
		io.WriteString(p.out, text[len(p.printed):])
	} else {
		// Ausgabe wurde gelöscht oder umgeschrieben
		io.WriteString(p.out, "\x1b[2J\x1b[H"+text)
	}
	p.printed = text
}

// Run compiles and runs source, feeding keys from in and writing the
// output to out. It returns when the program ended, failed or the user
// interrupted it. A program that does not compile is not started.
func Run(ctx context.Context, in io.Reader, out io.Writer, source string, opts session.Options) error {
	if _, err := basic.NewCompiler().Compile(source); err != nil {
		return err
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), state)
	}

	var (
		mu       sync.Mutex
		p        = &printer{out: out}
		controls = map[string]bool{}
		done     = make(chan error, 1)
	)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	opts.Send = func(m shared.Message) {
		mu.Lock()
		defer mu.Unlock()
		switch m.Type {
		case shared.MessageTypeOutput:
			p.update(m.Content)
		case shared.MessageTypeControls:
			controls[m.Control] = *m.Enabled
		case shared.MessageTypeVariables:
			// sent last when the loop exits
			if !controls[shared.ControlStop] && !controls[shared.ControlContinue] {
				finish(nil)
			}
		case shared.MessageTypeError:
			finish(errors.New(m.Content))
		}
	}

	s, err := session.New(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Handle(shared.Request{Action: "parseRun", Content: source}); err != nil {
		return err
	}
	go readKeys(in, s, finish)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readKeys forwards every byte of in as a key press.
func readKeys(in io.Reader, s *session.Session, finish func(error)) {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			if b == keyInterrupt {
				finish(ErrInterrupted)
				return
			}
			if err := s.Handle(shared.Request{Action: "key", Key: string(rune(b))}); err != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn(logger.AreaKeyboard, "reading keys: %v", err)
			}
			return
		}
	}
}
