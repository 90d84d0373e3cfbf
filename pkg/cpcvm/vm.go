// Package cpcvm is the machine compiled programs run on: stop state,
// output buffer, variables, pending requests and the frame clock.
package cpcvm

import (
	"fmt"
	"strings"
	"time"

	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

const (
	DefaultFrameRate = 50
	// screenStreams are the window streams that print to the output.
	screenStreams = 8
)

// Cursor addresses a statement. Line 0 means the first line.
type Cursor struct {
	Line int
	Stmt int
}

// Options configures a VM.
type Options struct {
	FrameRate int
	Now       func() time.Time
}

// VM implements runloop.VM.
type VM struct {
	stop runloop.StopState
	out  []rune

	vars   map[string]interface{}
	cursor Cursor
	gosub  []Cursor

	deferredStart int
	input         *runloop.InputRequest
	file          *runloop.FileRequest
	sound         runloop.SoundQueue

	onErrorLine    int
	inErrorHandler bool
	errCode        int
	errCursor      Cursor
	onBreakCont    bool

	frameInterval time.Duration
	nextFrame     time.Time
	now           func() time.Time
}

// New creates a machine.
func New(opts Options) *VM {
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	vm := &VM{
		vars:          make(map[string]interface{}),
		frameInterval: time.Second / time.Duration(opts.FrameRate),
		now:           opts.Now,
	}
	vm.nextFrame = vm.now().Add(vm.frameInterval)
	return vm
}

func (vm *VM) StopState() runloop.StopState {
	return vm.stop
}

// RequestStop applies the request when runloop.Preempts allows it.
func (vm *VM) RequestStop(reason runloop.StopReason, priority int, hold bool) {
	if !runloop.Preempts(vm.stop, priority, hold) {
		logger.Debug(logger.AreaVM, "stop %q/%d ignored, active %q/%d", reason, priority, vm.stop.Reason, vm.stop.Priority)
		return
	}
	vm.stop = runloop.StopState{Reason: reason, Priority: priority, HoldResume: hold}
}

// TimeUntilFrame returns the wait until the next frame flyback.
func (vm *VM) TimeUntilFrame() time.Duration {
	now := vm.now()
	if !vm.nextFrame.After(now) {
		missed := now.Sub(vm.nextFrame)/vm.frameInterval + 1
		vm.nextFrame = vm.nextFrame.Add(missed * vm.frameInterval)
	}
	return vm.nextFrame.Sub(now)
}

// LoopCondition yields a frame once the current frame time is used up.
// It reports whether the program may go on.
func (vm *VM) LoopCondition() bool {
	if vm.now().Before(vm.nextFrame) {
		return true
	}
	vm.RequestStop(runloop.ReasonFrame, runloop.PriorityFrame, false)
	return vm.stop.Runnable()
}

// Frame waits for the next flyback.
func (vm *VM) Frame() {
	vm.RequestStop(runloop.ReasonFrame, runloop.PriorityFrame, false)
}

func (vm *VM) ResetState() {
	vm.stop = runloop.StopState{}
	vm.out = nil
	vm.vars = make(map[string]interface{})
	vm.resetExecution(0)
	vm.sound.Clear()
}

// PrepareRun clears the variables to the names the program uses and
// positions execution at line.
func (vm *VM) PrepareRun(line int, variables []string) {
	vm.vars = make(map[string]interface{}, len(variables))
	for _, name := range variables {
		vm.vars[name] = zeroValue(name)
	}
	vm.resetExecution(line)
}

func (vm *VM) resetExecution(line int) {
	vm.cursor = Cursor{Line: line}
	vm.gosub = nil
	vm.deferredStart = 0
	vm.input = nil
	vm.file = nil
	vm.onErrorLine = 0
	vm.inErrorHandler = false
	vm.errCode = 0
	vm.errCursor = Cursor{}
	vm.onBreakCont = false
	vm.nextFrame = vm.now().Add(vm.frameInterval)
}

func (vm *VM) DeferredStartLine() int {
	line := vm.deferredStart
	vm.deferredStart = 0
	return line
}

// SetDeferredStartLine records the line a RUN asked for.
func (vm *VM) SetDeferredStartLine(line int) {
	vm.deferredStart = line
}

func (vm *VM) InputRequest() *runloop.InputRequest {
	return vm.input
}

func (vm *VM) FileRequest() *runloop.FileRequest {
	return vm.file
}

func (vm *VM) SoundQueue() *runloop.SoundQueue {
	return &vm.sound
}

// RequestInput prints prompt and pauses until a line was entered.
func (vm *VM) RequestInput(stream int, prompt string, callback func(line string)) {
	if prompt != "" {
		vm.Print(stream, prompt)
	}
	vm.input = &runloop.InputRequest{Stream: stream, Callback: callback}
	vm.RequestStop(runloop.ReasonInput, runloop.PriorityInput, false)
}

// RequestFile pauses until the file operation finished.
func (vm *VM) RequestFile(command, name string) {
	vm.file = &runloop.FileRequest{Command: command, Name: name}
	vm.RequestStop(runloop.ReasonLoadFile, runloop.PriorityLoadFile, false)
}

// QueueSound queues entry and pauses until the channels took it.
func (vm *VM) QueueSound(entry runloop.SoundEntry) {
	vm.sound.Push(entry)
	vm.RequestStop(runloop.ReasonSound, runloop.PrioritySound, false)
}

// WaitKey pauses until a key is pressed.
func (vm *VM) WaitKey() {
	vm.RequestStop(runloop.ReasonKey, runloop.PriorityKey, false)
}

// End stops the program.
func (vm *VM) End() {
	vm.RequestStop(runloop.ReasonEnd, runloop.PriorityEnd, false)
}

// Stop breaks the program so that it can be continued.
func (vm *VM) Stop(line int) {
	vm.Print(0, fmt.Sprintf("Break in %d\r\n", line))
	vm.RequestStop(runloop.ReasonStop, runloop.PriorityStop, false)
}

// Escape decides an escape: it cancels unless ON BREAK CONT is active.
func (vm *VM) Escape() bool {
	return !vm.onBreakCont
}

// SetOnBreakCont sets ON BREAK CONT (true) or ON BREAK STOP (false).
func (vm *VM) SetOnBreakCont(cont bool) {
	vm.onBreakCont = cont
}

// SetOnError sets the ON ERROR GOTO line; 0 disables it.
func (vm *VM) SetOnError(line int) {
	vm.onErrorLine = line
}

// SetError raises error code at the current statement. With an error
// handler the program continues there; otherwise the error is printed.
func (vm *VM) SetError(code int) {
	vm.errCode = code
	vm.errCursor = vm.cursor

	if vm.onErrorLine > 0 && !vm.inErrorHandler {
		vm.inErrorHandler = true
		vm.cursor = Cursor{Line: vm.onErrorLine}
		vm.RequestStop(runloop.ReasonOnError, runloop.PriorityError, false)
		return
	}

	msg := ErrorText(code)
	if vm.cursor.Line > 0 {
		msg += fmt.Sprintf(" in %d", vm.cursor.Line)
	}
	vm.Print(0, msg+"\r\n")
	vm.RequestStop(runloop.ReasonError, runloop.PriorityError, false)
}

// Raise sets the error and returns it for unwinding the program.
func (vm *VM) Raise(code int) error {
	vm.SetError(code)
	return &runloop.VMError{Code: code, Line: vm.errCursor.Line, Message: ErrorText(code)}
}

// Resume leaves the error handler. next resumes after the failing
// statement; line > 0 resumes at that line.
func (vm *VM) Resume(line int, next bool) error {
	if !vm.inErrorHandler {
		return vm.Raise(ErrUnexpectedResume)
	}
	vm.inErrorHandler = false
	vm.errCode = 0
	switch {
	case line > 0:
		vm.cursor = Cursor{Line: line}
	case next:
		vm.cursor = Cursor{Line: vm.errCursor.Line, Stmt: vm.errCursor.Stmt + 1}
	default:
		vm.cursor = vm.errCursor
	}
	return nil
}

// ErrorCode returns ERR.
func (vm *VM) ErrorCode() int {
	return vm.errCode
}

// ErrorLine returns ERL.
func (vm *VM) ErrorLine() int {
	return vm.errCursor.Line
}

func (vm *VM) Cursor() Cursor {
	return vm.cursor
}

func (vm *VM) SetCursor(c Cursor) {
	vm.cursor = c
}

// Gosub pushes the return position and jumps to line.
func (vm *VM) Gosub(ret Cursor, line int) {
	vm.gosub = append(vm.gosub, ret)
	vm.cursor = Cursor{Line: line}
}

// Return pops the return position.
func (vm *VM) Return() error {
	if len(vm.gosub) == 0 {
		return vm.Raise(ErrUnexpectedReturn)
	}
	vm.cursor = vm.gosub[len(vm.gosub)-1]
	vm.gosub = vm.gosub[:len(vm.gosub)-1]
	return nil
}

// Var returns a variable; unset variables have their zero value.
func (vm *VM) Var(name string) interface{} {
	if v, ok := vm.vars[name]; ok {
		return v
	}
	return zeroValue(name)
}

func (vm *VM) SetVar(name string, value interface{}) {
	vm.vars[name] = value
}

func (vm *VM) Variables() map[string]interface{} {
	vars := make(map[string]interface{}, len(vm.vars))
	for k, v := range vm.vars {
		vars[k] = v
	}
	return vars
}

// Print writes text to a stream. Streams 0 to 7 go to the output;
// backspace erases, bell is counted and form feed clears.
func (vm *VM) Print(stream int, text string) {
	if stream < 0 || stream >= screenStreams {
		logger.Debug(logger.AreaVM, "print to stream %d dropped", stream)
		return
	}
	for _, r := range text {
		switch r {
		case '\x08':
			if n := len(vm.out); n > 0 && vm.out[n-1] != '\n' {
				vm.out = vm.out[:n-1]
			}
		case '\x10':
			// clear character: already erased by backspace
		case '\x07':
			// bell, nichts auszugeben
		case '\x0c':
			vm.out = vm.out[:0]
		default:
			vm.out = append(vm.out, r)
		}
	}
}

// Cls clears the output.
func (vm *VM) Cls() {
	vm.Print(0, "\x0c")
}

// Column returns the position of the cursor in the current output line.
func (vm *VM) Column() int {
	col := 0
	for i := len(vm.out) - 1; i >= 0 && vm.out[i] != '\n' && vm.out[i] != '\r'; i-- {
		col++
	}
	return col
}

func (vm *VM) Output() string {
	return string(vm.out)
}

func (vm *VM) SetOutput(text string) {
	vm.out = []rune(text)
}

func zeroValue(name string) interface{} {
	if strings.HasSuffix(name, "$") {
		return ""
	}
	return float64(0)
}
