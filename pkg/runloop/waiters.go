package runloop

import (
	"fmt"

	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/program"
)

const (
	keyReturn = "\r"
	keyDelete = "\x7f"

	echoDelete = "\x08\x10" // backspace, clear character
	echoBell   = "\x07"
)

// waitForKey consumes a key that is already buffered, otherwise it
// installs a callback for the next key.
func (c *Controller) waitForKey() {
	c.kb.SetKeyCallback(nil)
	if key := c.kb.NextKey(); key != "" {
		logger.Debug(logger.AreaKeyboard, "wait for key satisfied by buffered %q", key)
		c.resume()
		return
	}
	c.kb.SetKeyCallback(c.onKey)
}

func (c *Controller) onKey() {
	c.kb.SetKeyCallback(nil)
	key := c.kb.NextKey()
	logger.Debug(logger.AreaKeyboard, "wait for key: %q", key)
	c.resume()
	c.Kick()
}

// waitForContinue resumes an escape pause on any key.
func (c *Controller) waitForContinue() {
	if key := c.kb.NextKey(); key != "" {
		c.kb.SetKeyCallback(nil)
		c.Continue()
	}
}

func (c *Controller) onInputKey() {
	if c.vm.StopState().Reason != ReasonInput {
		return
	}
	if c.waitForInput() {
		c.Kick()
		return
	}
	c.publishOutput(false)
}

// waitForInput runs one bounded pass over the key buffer and reports
// whether the input line was completed. An open line waits on the key
// callback once the buffer is drained, otherwise on a follow-up pass.
func (c *Controller) waitForInput() bool {
	req := c.vm.InputRequest()
	if req == nil {
		logger.RunLoopWarn("input wait without an input request")
		c.kb.SetKeyCallback(nil)
		c.resume()
		return true
	}

	completed, drained := false, false
	for n := 0; n < c.maxKeys; n++ {
		key := c.kb.NextKey()
		if key == "" {
			drained = true
			break
		}
		if key == keyReturn {
			completed = true
			break
		}
		c.editInput(req, key)
	}

	if !completed {
		// entweder Tasten-Callback oder Folgedurchlauf, nie beides
		if drained {
			c.kb.SetKeyCallback(c.onInputKey)
		} else {
			c.kb.SetKeyCallback(nil)
			c.scheduleInputPass()
		}
		return false
	}

	c.kb.SetKeyCallback(nil)
	c.resume()
	line := req.Text
	req.Text = ""
	logger.Debug(logger.AreaKeyboard, "wait for input: %q", line)
	if !req.NoCRLF {
		c.vm.Print(req.Stream, "\r\n")
	}
	if req.Callback != nil {
		req.Callback(line)
	}
	return true
}

func (c *Controller) editInput(req *InputRequest, key string) {
	if key == keyDelete {
		if len(req.Text) > 0 {
			runes := []rune(req.Text)
			req.Text = string(runes[:len(runes)-1])
			c.vm.Print(req.Stream, echoDelete)
		} else {
			c.vm.Print(req.Stream, echoBell)
		}
		return
	}
	c.vm.Print(req.Stream, key)
	if key >= "\x20" {
		req.Text += key
	}
}

// scheduleInputPass continues draining keys left over by a bounded pass.
func (c *Controller) scheduleInputPass() {
	if c.cancelInput != nil {
		return
	}
	c.cancelInput = c.timers.AfterFunc(0, func() {
		c.cancelInput = nil
		c.onInputKey()
	})
}

// waitForSound plays queued entries while the channels accept them.
func (c *Controller) waitForSound() {
	if !c.sound.IsActivatedByUser() {
		return
	}

	c.sound.Scheduler()
	queue := c.vm.SoundQueue()
	for {
		entry, ok := queue.Front()
		if !ok || !c.sound.CanQueue(entry.State) {
			break
		}
		queue.Shift()
		c.sound.Play(entry)
	}
	if queue.Len() == 0 {
		c.resume()
	}
}

// waitForFile starts the load of the pending file request once.
func (c *Controller) waitForFile() {
	req := c.vm.FileRequest()
	if req == nil {
		logger.Warn(logger.AreaFileLoad, "load wait without a file request")
		c.vm.SetError(ErrCodeBrokenIn)
		return
	}
	if req.State != FileStateNone {
		return
	}
	req.State = FileStateLoading
	logger.Debug(logger.AreaFileLoad, "%s %q", req.Command, req.Name)
	c.loader.Load(*req, func(text string, err error) {
		c.fileLoaded(req, text, err)
	})
}

func (c *Controller) fileLoaded(req *FileRequest, text string, err error) {
	if c.state == loopClosed {
		return
	}
	if c.vm.FileRequest() != req || c.vm.StopState().Reason != ReasonLoadFile {
		logger.Info(logger.AreaFileLoad, "dropping stale result for %q", req.Name)
		return
	}

	if err != nil {
		logger.Warn(logger.AreaFileLoad, "Cannot %s %q: %v", req.Command, req.Name, err)
		c.vm.SetError(ErrCodeBrokenIn)
		c.Kick()
		return
	}

	switch req.Command {
	case FileCommandLoad:
		c.SetSource(text)
		c.vm.RequestStop(ReasonEnd, PriorityEnd, false)
	case FileCommandMerge:
		c.SetSource(program.Merge(c.source, text))
		c.vm.RequestStop(ReasonParseRun, PriorityControl, false)
	case FileCommandRun, FileCommandChain:
		c.SetSource(text)
		c.vm.RequestStop(ReasonParseRun, PriorityControl, false)
	default:
		logger.Warn(logger.AreaFileLoad, "unknown file command %q", req.Command)
		c.vm.SetError(ErrCodeBrokenIn)
	}
	c.Kick()
}

// NoFileAccess is the loader used when no file backend is configured.
type NoFileAccess struct{}

func (NoFileAccess) Load(req FileRequest, done func(string, error)) {
	done("", fmt.Errorf("cannot %s %q: %w", req.Command, req.Name, ErrNoFileAccess))
}
