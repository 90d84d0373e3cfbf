package runloop

import (
	"time"
)

type fakeVM struct {
	stop    StopState
	history []StopState
	out     string
	input   *InputRequest
	file    *FileRequest
	sound   SoundQueue
	vars    map[string]interface{}

	escapeCancels bool
	deferred      int
	errors        []int
	prepared      []int
	frameWait     time.Duration
}

func newFakeVM() *fakeVM {
	return &fakeVM{escapeCancels: true, frameWait: 20 * time.Millisecond, vars: map[string]interface{}{}}
}

func (vm *fakeVM) StopState() StopState { return vm.stop }

func (vm *fakeVM) RequestStop(reason StopReason, priority int, hold bool) {
	if !Preempts(vm.stop, priority, hold) {
		return
	}
	vm.stop = StopState{Reason: reason, Priority: priority, HoldResume: hold}
	vm.history = append(vm.history, vm.stop)
}

func (vm *fakeVM) TimeUntilFrame() time.Duration { return vm.frameWait }

func (vm *fakeVM) ResetState() {
	vm.stop = StopState{}
	vm.out = ""
	vm.input = nil
	vm.file = nil
	vm.sound.Clear()
}

func (vm *fakeVM) PrepareRun(line int, variables []string) {
	vm.prepared = append(vm.prepared, line)
	for _, name := range variables {
		vm.vars[name] = float64(0)
	}
}

func (vm *fakeVM) DeferredStartLine() int {
	line := vm.deferred
	vm.deferred = 0
	return line
}

func (vm *fakeVM) InputRequest() *InputRequest { return vm.input }
func (vm *fakeVM) FileRequest() *FileRequest   { return vm.file }
func (vm *fakeVM) SoundQueue() *SoundQueue     { return &vm.sound }
func (vm *fakeVM) Escape() bool                { return vm.escapeCancels }

func (vm *fakeVM) SetError(code int) {
	vm.errors = append(vm.errors, code)
	vm.RequestStop(ReasonError, PriorityError, false)
}

func (vm *fakeVM) Print(stream int, text string)      { vm.out += text }
func (vm *fakeVM) Output() string                     { return vm.out }
func (vm *fakeVM) SetOutput(text string)              { vm.out = text }
func (vm *fakeVM) Variables() map[string]interface{} { return vm.vars }

// programFunc adapts a function to Program.
type programFunc func(vm VM) error

func (f programFunc) Execute(vm VM) error { return f(vm) }

type fakeCompiler struct {
	program Program
	vars    []string
	err     error
	calls   int
}

func (c *fakeCompiler) Compile(source string) (*CompiledProgram, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &CompiledProgram{Program: c.program, Variables: c.vars}, nil
}

type fakeKeyboard struct {
	keys     []string
	callback func()
}

func (k *fakeKeyboard) SetKeyCallback(fn func()) { k.callback = fn }

func (k *fakeKeyboard) NextKey() string {
	if len(k.keys) == 0 {
		return ""
	}
	key := k.keys[0]
	k.keys = k.keys[1:]
	return key
}

func (k *fakeKeyboard) PushKey(key string) {
	k.keys = append(k.keys, key)
	if k.callback != nil {
		k.callback()
	}
}

type fakeSound struct {
	activated  bool
	capacity   int
	played     []SoundEntry
	schedulers int
	resets     int
}

func (s *fakeSound) Scheduler()              { s.schedulers++ }
func (s *fakeSound) CanQueue(state int) bool { return len(s.played) < s.capacity }
func (s *fakeSound) Play(entry SoundEntry)   { s.played = append(s.played, entry) }
func (s *fakeSound) IsActivatedByUser() bool { return s.activated }
func (s *fakeSound) Reset()                  { s.resets++ }

type fakeView struct {
	outputs  []string
	controls map[string]bool
	vars     []string
	scrolls  int
}

func newFakeView() *fakeView {
	return &fakeView{controls: map[string]bool{}}
}

func (v *fakeView) SetOutputText(text string)                  { v.outputs = append(v.outputs, text) }
func (v *fakeView) ScrollOutputToEnd()                         { v.scrolls++ }
func (v *fakeView) SetControlEnabled(name string, enabled bool) { v.controls[name] = enabled }
func (v *fakeView) SetVariables(entries []string)              { v.vars = entries }

type manualTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

// manualTimers runs timers only when the test fires them.
type manualTimers struct {
	pending []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, fn func()) func() {
	t := &manualTimer{delay: d, fn: fn}
	m.pending = append(m.pending, t)
	return func() { t.cancelled = true }
}

// active returns the timers that were neither fired nor cancelled.
func (m *manualTimers) active() []*manualTimer {
	var out []*manualTimer
	for _, t := range m.pending {
		if !t.cancelled {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the oldest active timer and reports whether there was one.
func (m *manualTimers) fire() bool {
	for i, t := range m.pending {
		if t.cancelled {
			continue
		}
		m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
		t.fn()
		return true
	}
	return false
}

type fakeLoader struct {
	requests []FileRequest
	done     func(string, error)
	text     string
	err      error
	async    bool
}

func (l *fakeLoader) Load(req FileRequest, done func(string, error)) {
	l.requests = append(l.requests, req)
	if l.async {
		l.done = done
		return
	}
	done(l.text, l.err)
}

type harness struct {
	vm       *fakeVM
	kb       *fakeKeyboard
	sound    *fakeSound
	view     *fakeView
	timers   *manualTimers
	compiler *fakeCompiler
	c        *Controller
}

func newHarness(prog Program, loader FileLoader) *harness {
	h := &harness{
		vm:       newFakeVM(),
		kb:       &fakeKeyboard{},
		sound:    &fakeSound{activated: true, capacity: 3},
		view:     newFakeView(),
		timers:   &manualTimers{},
		compiler: &fakeCompiler{program: prog},
	}
	h.c = New(Config{
		VM:       h.vm,
		Keyboard: h.kb,
		Sound:    h.sound,
		View:     h.view,
		Timers:   h.timers,
		Compiler: h.compiler,
		Loader:   loader,
	})
	return h
}

// start compiles and runs the program up to the end of the first tick.
func (h *harness) start() {
	h.c.SetSource("10 REM")
	h.c.ParseRun()
}
