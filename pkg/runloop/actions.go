package runloop

import (
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/program"
)

// Saved returns the content of the save slot.
func (c *Controller) Saved() SavedStop {
	return c.saved
}

func (c *Controller) saveStop() {
	st := c.vm.StopState()
	c.saved = SavedStop{Reason: st.Reason, Priority: st.Priority}
}

// RequestBreak pauses with reason break, remembering the active state.
func (c *Controller) RequestBreak() {
	c.saveStop()
	c.kb.SetKeyCallback(nil)
	c.vm.RequestStop(ReasonBreak, PriorityBreak, false)
	c.Kick()
}

// RequestEscape pauses with reason escape, remembering the active state.
func (c *Controller) RequestEscape() {
	c.saveStop()
	c.kb.SetKeyCallback(nil)
	c.vm.RequestStop(ReasonEscape, PriorityEscape, false)
	c.Kick()
}

// EscapeKey handles the escape key. The first press pauses; a second
// press while paused turns the pause into a break and keeps the state
// saved by the first one.
func (c *Controller) EscapeKey() {
	if c.vm.StopState().Reason != ReasonEscape {
		c.RequestEscape()
		return
	}
	c.kb.SetKeyCallback(nil)
	c.vm.RequestStop(ReasonBreak, PriorityBreak, true)
	c.Kick()
}

// Continue restores the saved state after a break, escape or stop.
func (c *Controller) Continue() {
	c.view.SetControlEnabled(ControlStop, true)
	c.view.SetControlEnabled(ControlContinue, false)

	if resumable(c.vm.StopState().Reason) {
		c.vm.RequestStop(c.saved.Reason, c.saved.Priority, true)
		c.saved = SavedStop{}
	}
	c.Kick()
}

// Parse recompiles the source.
func (c *Controller) Parse() {
	c.vm.RequestStop(ReasonParse, PriorityControl, false)
	c.Kick()
}

// Run runs the compiled program, compiling it first if needed.
func (c *Controller) Run() {
	c.control(ReasonRun)
}

// ParseRun recompiles and runs from the first line.
func (c *Controller) ParseRun() {
	c.control(ReasonParseRun)
}

// Reset resets the machine and clears the output.
func (c *Controller) Reset() {
	c.control(ReasonReset)
}

func (c *Controller) control(reason StopReason) {
	c.saved = SavedStop{}
	c.kb.SetKeyCallback(nil)
	c.vm.RequestStop(reason, PriorityControl, false)
	c.Kick()
}

// Enter types text followed by return.
func (c *Controller) Enter(text string) {
	for _, r := range text {
		c.kb.PushKey(string(r))
	}
	c.kb.PushKey(keyReturn)
}

// Source returns the program text.
func (c *Controller) Source() string {
	return c.source
}

// SetSource replaces the program text and drops the compiled program.
func (c *Controller) SetSource(text string) {
	if text != c.source {
		logger.Debug(logger.AreaProgram, "source changed, %d bytes", len(text))
	}
	c.source = text
	c.program = nil
}

// MergeSource merges text into the program text; its lines win.
func (c *Controller) MergeSource(text string) {
	c.SetSource(program.Merge(c.source, text))
}

// Renumber renumbers the program text.
func (c *Controller) Renumber(start, step int) error {
	text, err := program.Renumber(c.source, program.RenumberOptions{New: start, Step: step})
	if err != nil {
		return err
	}
	c.SetSource(text)
	return nil
}

// Compiled reports whether a compiled program is present.
func (c *Controller) Compiled() bool {
	return c.program != nil
}
