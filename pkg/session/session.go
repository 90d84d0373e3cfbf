// Package session binds one client to its own run loop: machine,
// keyboard, sound, compiler and program library all live on a single
// host loop goroutine, and every request is posted to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/antibyte/cpcrun/pkg/basic"
	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/cpcvm"
	"github.com/antibyte/cpcrun/pkg/hostloop"
	"github.com/antibyte/cpcrun/pkg/keyboard"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/runloop"
	"github.com/antibyte/cpcrun/pkg/shared"
	"github.com/antibyte/cpcrun/pkg/sound"
	"github.com/antibyte/cpcrun/pkg/virtualfs"
)

var (
	// ErrUnknownAction is returned for requests with an unknown action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNoLibrary is returned for save/load/files without file access.
	ErrNoLibrary = errors.New("local file access is not available")
)

// Options configures a session.
type Options struct {
	Owner string
	// FS is the program library; nil disables file access.
	FS   *virtualfs.VFS
	Send func(shared.Message)

	FrameRate      int
	MaxKeysPerPass int
	Bench          int
	SoundEnabled   bool
	SoundQueue     int
}

// OptionsFromConfig reads the [RunLoop] and [Sound] settings.
func OptionsFromConfig() Options {
	return Options{
		FrameRate:      configuration.GetInt("RunLoop", "frame_rate_hz", cpcvm.DefaultFrameRate),
		MaxKeysPerPass: configuration.GetInt("RunLoop", "max_keys_per_pass", 256),
		Bench:          configuration.GetInt("RunLoop", "bench", 0),
		SoundEnabled:   configuration.GetBool("Sound", "enabled", true),
		SoundQueue:     configuration.GetInt("Sound", "queue_length", sound.DefaultQueueLength),
	}
}

// Session is one client's machine and run loop.
type Session struct {
	ID    string
	Owner string

	loop *hostloop.Loop
	vm   *cpcvm.VM
	kb   *keyboard.Buffer
	snd  *sound.Sound
	ctl  *runloop.Controller
	fs   *virtualfs.VFS
	send func(shared.Message)
}

// New starts a session with a fresh id.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Send == nil {
		opts.Send = func(shared.Message) {}
	}
	loop, err := hostloop.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting host loop: %w", err)
	}

	s := &Session{
		ID:    uuid.New().String(),
		Owner: opts.Owner,
		loop:  loop,
		vm:    cpcvm.New(cpcvm.Options{FrameRate: opts.FrameRate}),
		kb:    keyboard.New(),
		fs:    opts.FS,
		send:  opts.Send,
	}
	s.snd = sound.New(sound.Options{
		QueueLength: opts.SoundQueue,
		Enabled:     opts.SoundEnabled,
		Sink:        s.playSound,
	})

	var loader runloop.FileLoader
	if opts.FS != nil {
		loader = virtualfs.NewLoader(opts.FS, opts.Owner, loop.Post)
	}
	s.ctl = runloop.New(runloop.Config{
		VM:             s.vm,
		Keyboard:       s.kb,
		Sound:          s.snd,
		View:           &messageView{send: opts.Send},
		Timers:         loop,
		Compiler:       basic.NewCompiler(),
		Loader:         loader,
		MaxKeysPerPass: opts.MaxKeysPerPass,
		Bench:          opts.Bench,
	})
	s.kb.SetEscapeHandler(s.ctl.EscapeKey)

	logger.Info(logger.AreaSession, "session %s started for %q", s.ID, s.Owner)
	s.send(shared.Message{Type: shared.MessageTypeSession, SessionID: s.ID})
	return s, nil
}

// Handle queues req on the session's loop.
func (s *Session) Handle(req shared.Request) error {
	return s.loop.Post(func() {
		if err := s.handle(req); err != nil {
			logger.Debug(logger.AreaSession, "session %s: %s failed: %v", s.ID, req.Action, err)
			s.send(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
		}
	})
}

// Call runs fn on the session's loop and waits for it.
func (s *Session) Call(ctx context.Context, fn func(ctl *runloop.Controller)) error {
	return s.loop.Call(ctx, func() { fn(s.ctl) })
}

// Close stops the run loop and its goroutine.
func (s *Session) Close() {
	if err := s.loop.Call(context.Background(), s.ctl.Close); err != nil {
		logger.Debug(logger.AreaSession, "session %s: close: %v", s.ID, err)
	}
	s.loop.Close()
	logger.Info(logger.AreaSession, "session %s closed", s.ID)
}

func (s *Session) handle(req shared.Request) error {
	// Jede Benutzeraktion gilt als Geste, die Audio freigibt.
	s.snd.SetActivatedByUser(true)

	switch req.Action {
	case "source":
		s.ctl.SetSource(req.Content)
	case "parse":
		s.setSource(req)
		s.ctl.Parse()
	case "run":
		s.setSource(req)
		s.ctl.Run()
	case "parseRun":
		s.setSource(req)
		s.ctl.ParseRun()
	case "stop":
		s.ctl.RequestBreak()
	case "continue":
		s.ctl.Continue()
	case "reset":
		s.ctl.Reset()
	case "enter":
		s.ctl.Enter(req.Content)
	case "key":
		key := keyboard.Translate(req.Key)
		if key == "" {
			return fmt.Errorf("%w: key %q", ErrUnknownAction, req.Key)
		}
		s.kb.PushKey(key)
	case "escape":
		s.ctl.EscapeKey()
	case "sound":
		s.snd.SetEnabled(parseSwitch(req.Content))
	case "merge":
		s.ctl.MergeSource(req.Content)
		s.sendSource()
	case "renum":
		if err := s.ctl.Renumber(req.Line, req.Step); err != nil {
			return err
		}
		s.sendSource()
	case "save":
		if s.fs == nil {
			return ErrNoLibrary
		}
		return s.fs.WriteFile(s.Owner, req.Name, s.ctl.Source())
	case "load":
		if s.fs == nil {
			return ErrNoLibrary
		}
		text, err := s.fs.ReadFile(s.Owner, req.Name)
		if err != nil {
			return err
		}
		s.ctl.SetSource(text)
		s.sendSource()
	case "files":
		if s.fs == nil {
			return ErrNoLibrary
		}
		names, err := s.fs.List(s.Owner)
		if err != nil {
			return err
		}
		s.send(shared.Message{Type: shared.MessageTypeFiles, Files: names})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return nil
}

// setSource takes the program text sent along with parse and run.
func (s *Session) setSource(req shared.Request) {
	if req.Content != "" {
		s.ctl.SetSource(req.Content)
	}
}

func (s *Session) sendSource() {
	s.send(shared.Message{Type: shared.MessageTypeSource, Content: s.ctl.Source()})
}

func (s *Session) playSound(channels int, entry runloop.SoundEntry) {
	s.send(shared.Message{
		Type: shared.MessageTypeSound,
		Params: map[string]interface{}{
			"channels":  channels,
			"period":    entry.Period,
			"duration":  entry.Duration,
			"volume":    entry.Volume,
			"noise":     entry.Noise,
			"frequency": sound.Frequency(entry.Period),
		},
	})
}

func parseSwitch(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true
	}
	return false
}

// messageView publishes the loop's state as websocket messages.
type messageView struct {
	send func(shared.Message)
}

func (v *messageView) SetOutputText(text string) {
	v.send(shared.Message{Type: shared.MessageTypeOutput, Content: text})
}

func (v *messageView) ScrollOutputToEnd() {
	v.send(shared.Message{Type: shared.MessageTypeScroll})
}

func (v *messageView) SetControlEnabled(name string, enabled bool) {
	v.send(shared.Message{Type: shared.MessageTypeControls, Control: name, Enabled: shared.BoolPtr(enabled)})
}

func (v *messageView) SetVariables(entries []string) {
	v.send(shared.Message{Type: shared.MessageTypeVariables, Variables: entries})
}
