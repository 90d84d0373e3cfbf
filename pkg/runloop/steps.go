package runloop

import (
	"time"

	"github.com/antibyte/cpcrun/pkg/logger"
)

// parse compiles the current source. On failure the error is printed
// to the output and no program is left.
func (c *Controller) parse() error {
	c.program = nil

	rounds := c.bench
	if rounds < 1 {
		rounds = 1
	}

	var (
		compiled *CompiledProgram
		err      error
	)
	for i := 0; i < rounds; i++ {
		start := time.Now()
		compiled, err = c.compiler.Compile(c.source)
		if c.bench > 0 {
			logger.Info(logger.AreaProgram, "bench size %d loop %d: %v", len(c.source), i, time.Since(start))
		}
		if err != nil {
			break
		}
	}

	if err != nil {
		logger.Info(logger.AreaProgram, "compile failed: %v", err)
		c.vm.Print(0, err.Error()+"\r\n")
		return err
	}
	c.program = compiled
	return nil
}

func (c *Controller) parseRun() {
	if err := c.parse(); err == nil {
		c.run(0)
	}
}

// run positions the program at line and makes it runnable.
func (c *Controller) run(line int) {
	if c.program == nil {
		if err := c.parse(); err != nil {
			return
		}
	}

	c.vm.PrepareRun(line, c.program.Variables)
	c.resume()
	c.view.SetControlEnabled(ControlStop, true)
	c.view.SetControlEnabled(ControlContinue, false)
	logger.RunLoopDebug("run from line %d", line)
}

// reset clears the machine. The reset reason stays at priority 0 so a
// following parse still works.
func (c *Controller) reset() {
	c.vm.ResetState()
	c.sound.Reset()
	c.vm.RequestStop(ReasonReset, PriorityNone, false)
	c.vm.SetOutput("")
	c.view.SetOutputText("")
	c.lastOutput = ""
	c.program = nil
}
