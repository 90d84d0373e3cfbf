// Package runloop runs a compiled line-numbered program one tick at a time
// on a single host goroutine. Between ticks the program waits on a timer or
// on a keyboard callback, never both.
package runloop

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/antibyte/cpcrun/pkg/logger"
)

const (
	defaultMaxKeysPerPass = 256
	// idleDelay paces ticks while runnable without a program.
	idleDelay = 20 * time.Millisecond
	// maxVariableEntry is the length variable list entries are cut at.
	maxVariableEntry = 35
)

type loopState int

const (
	loopIdle loopState = iota
	loopRunning
	loopScheduled
	loopClosed
)

func (s loopState) String() string {
	switch s {
	case loopIdle:
		return "idle"
	case loopRunning:
		return "running"
	case loopScheduled:
		return "scheduled"
	case loopClosed:
		return "closed"
	}
	return "unknown"
}

// Config wires a Controller to its collaborators.
type Config struct {
	VM       VM
	Keyboard Keyboard
	Sound    Sound
	View     View
	Timers   Timers
	Compiler Compiler
	Loader   FileLoader // nil means no file access

	MaxKeysPerPass int // keys the input waiter consumes per pass
	Bench          int // compile this many times and log the timings
}

// Controller is the run loop. All methods must be called on the loop
// goroutine.
type Controller struct {
	vm       VM
	kb       Keyboard
	sound    Sound
	view     View
	timers   Timers
	compiler Compiler
	loader   FileLoader

	maxKeys int
	bench   int

	state       loopState
	cancelTimer func()
	cancelInput func()

	saved      SavedStop
	source     string
	program    *CompiledProgram
	lastOutput string
}

// New creates a controller. The loop does not run until Kick or one of
// the actions is called.
func New(cfg Config) *Controller {
	c := &Controller{
		vm:       cfg.VM,
		kb:       cfg.Keyboard,
		sound:    cfg.Sound,
		view:     cfg.View,
		timers:   cfg.Timers,
		compiler: cfg.Compiler,
		loader:   cfg.Loader,
		maxKeys:  cfg.MaxKeysPerPass,
		bench:    cfg.Bench,
	}
	if c.maxKeys <= 0 {
		c.maxKeys = defaultMaxKeysPerPass
	}
	if c.loader == nil {
		c.loader = NoFileAccess{}
	}
	return c
}

// Kick runs one tick now unless a tick is already running or scheduled.
func (c *Controller) Kick() {
	if c.state != loopIdle {
		logger.RunLoopDebug("kick ignored, loop is %s", c.state)
		return
	}
	c.tick()
}

// Pending reports whether a tick is running or scheduled.
func (c *Controller) Pending() bool {
	return c.state == loopRunning || c.state == loopScheduled
}

// Close cancels a scheduled tick and detaches from the keyboard.
func (c *Controller) Close() {
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	if c.cancelInput != nil {
		c.cancelInput()
		c.cancelInput = nil
	}
	c.kb.SetKeyCallback(nil)
	c.state = loopClosed
}

func (c *Controller) onTimer() {
	if c.state != loopScheduled {
		return
	}
	c.cancelTimer = nil
	c.tick()
}

func (c *Controller) tick() {
	c.state = loopRunning

	if c.vm.StopState().Runnable() && c.program != nil {
		c.runPart()
	}

	delay := c.dispatch(c.vm.StopState().Reason)

	reason := c.vm.StopState().Reason
	if reason != ReasonNone && reason != ReasonSound {
		c.exitLoop()
		return
	}
	if reason == ReasonNone && c.program == nil && delay < idleDelay {
		delay = idleDelay
	}
	c.publishOutput(false)
	c.state = loopScheduled
	c.cancelTimer = c.timers.AfterFunc(delay, c.onTimer)
}

// dispatch handles the current stop reason and returns the delay before
// the next tick.
func (c *Controller) dispatch(reason StopReason) time.Duration {
	switch reason {
	case ReasonNone:
		// runnable, or the program yielded voluntarily

	case ReasonBreak, ReasonEnd, ReasonError, ReasonStop:
		// terminal

	case ReasonEscape:
		if !c.vm.Escape() {
			c.resume()
		} else {
			c.kb.SetKeyCallback(c.waitForContinue)
		}

	case ReasonFrame:
		c.resume()
		return c.vm.TimeUntilFrame()

	case ReasonInput:
		c.waitForInput()

	case ReasonKey:
		c.waitForKey()

	case ReasonLoadFile:
		c.waitForFile()
		if r := c.vm.StopState().Reason; r != ReasonLoadFile {
			// resolved while loading, handle the new reason in this tick
			return c.dispatch(r)
		}
		return c.vm.TimeUntilFrame()

	case ReasonOnError:
		c.resume()

	case ReasonParse:
		c.parse()

	case ReasonParseRun:
		c.parseRun()

	case ReasonReset:
		c.reset()

	case ReasonRun:
		c.run(c.vm.DeferredStartLine())

	case ReasonSound:
		c.waitForSound()
		return c.vm.TimeUntilFrame()

	case ReasonTimer:
		c.resume()

	default:
		logger.RunLoopWarn("unknown stop reason %q", reason)
	}
	return 0
}

// resume clears the pause.
func (c *Controller) resume() {
	c.vm.RequestStop(ReasonNone, PriorityNone, true)
}

// runPart executes the program until it yields. Faults never escape.
func (c *Controller) runPart() {
	err := c.execute()
	if err == nil {
		return
	}

	var vmErr *VMError
	if errors.As(err, &vmErr) {
		logger.Debug(logger.AreaVM, "program error %d: %s", vmErr.Code, vmErr.Message)
		return
	}

	logger.RunLoopError("program fault: %v", err)
	c.vm.SetOutput(c.vm.Output() + "\n" + err.Error() + "\n")
	c.vm.SetError(ErrCodeSyntax)
}

func (c *Controller) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FaultError{Value: r}
		}
	}()
	return c.program.Program.Execute(c.vm)
}

// exitLoop publishes the final state and leaves the loop idle.
func (c *Controller) exitLoop() {
	reason := c.vm.StopState().Reason

	c.publishOutput(true)
	c.view.ScrollOutputToEnd()
	c.view.SetControlEnabled(ControlStop, stopEnabled(reason))
	c.view.SetControlEnabled(ControlContinue, continueEnabled(reason))
	c.view.SetVariables(VariableList(c.vm.Variables()))

	c.state = loopIdle
	logger.RunLoopDebug("loop exit with reason %q", reason)
}

// publishOutput pushes the output buffer to the view when it changed.
func (c *Controller) publishOutput(force bool) {
	out := c.vm.Output()
	if !force && out == c.lastOutput {
		return
	}
	c.lastOutput = out
	c.view.SetOutputText(out)
}

// VariableList formats variables as sorted "name=value" entries.
func VariableList(vars map[string]interface{}) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]string, 0, len(names))
	for _, name := range names {
		entry := []rune(name + "=" + formatValue(vars[name]))
		if len(entry) > maxVariableEntry {
			entries = append(entries, string(entry[:maxVariableEntry])+" ...")
			continue
		}
		entries = append(entries, string(entry))
	}
	return entries
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
