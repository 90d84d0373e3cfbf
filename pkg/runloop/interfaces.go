package runloop

import "time"

// VM is the machine a compiled program runs on. It owns the stop state,
// the output buffer and the variable table.
type VM interface {
	StopState() StopState
	// RequestStop replaces the stop state if Preempts allows it.
	RequestStop(reason StopReason, priority int, hold bool)
	TimeUntilFrame() time.Duration

	// ResetState resets the machine, its variables and its stop state.
	ResetState()
	// PrepareRun clears the variables to the given table and positions
	// execution at line. It does not touch the stop state.
	PrepareRun(line int, variables []string)
	// DeferredStartLine returns and clears the line a RUN asked for.
	DeferredStartLine() int

	InputRequest() *InputRequest
	FileRequest() *FileRequest
	SoundQueue() *SoundQueue
	// Escape decides the outcome of an escape; true cancels execution.
	Escape() bool
	SetError(code int)

	Print(stream int, text string)
	Output() string
	SetOutput(text string)
	Variables() map[string]interface{}
}

// Program is a compiled, re-invokable program. Execute runs until the
// program requests a stop or returns.
type Program interface {
	Execute(vm VM) error
}

// CompiledProgram is a program plus the variables it was generated with.
type CompiledProgram struct {
	Program   Program
	Variables []string
}

// Compiler translates line-numbered source text.
type Compiler interface {
	Compile(source string) (*CompiledProgram, error)
}

// Keyboard is the key buffer. At most one key callback is active.
type Keyboard interface {
	SetKeyCallback(fn func())
	NextKey() string
	PushKey(key string)
}

// Sound is the emulated sound hardware.
type Sound interface {
	Scheduler()
	CanQueue(state int) bool
	Play(entry SoundEntry)
	IsActivatedByUser() bool
	Reset()
}

// View receives what the loop publishes when it exits.
type View interface {
	SetOutputText(text string)
	ScrollOutputToEnd()
	SetControlEnabled(name string, enabled bool)
	SetVariables(entries []string)
}

// Control names passed to View.SetControlEnabled.
const (
	ControlStop     = "stop"
	ControlContinue = "continue"
)

// Timers schedules fn on the loop goroutine after d.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// FileLoader loads a file for a FileRequest. done must be called on the
// loop goroutine, either synchronously or later.
type FileLoader interface {
	Load(req FileRequest, done func(text string, err error))
}
