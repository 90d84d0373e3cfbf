package basic

import (
	"strconv"
	"strings"

	"github.com/antibyte/cpcrun/pkg/cpcvm"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

// flow tells the runner how to go on after a statement.
type flow int

const (
	flowNext  flow = iota // advance to the next statement
	flowJump              // the statement moved the cursor
	flowYield             // stay on this statement and return
)

type statement interface {
	exec(r *runner) (flow, error)
}

const printZone = 13

type printItem struct {
	x   expr
	sep string // ";" or "," for separators
}

type printStmt struct {
	items   []printItem
	newline bool
}

func (s *printStmt) exec(r *runner) (flow, error) {
	for _, it := range s.items {
		switch it.sep {
		case ";":
		case ",":
			col := r.vm.Column()
			r.vm.Print(0, strings.Repeat(" ", printZone-col%printZone))
		default:
			v, err := it.x.eval(r)
			if err != nil {
				return flowNext, err
			}
			if n, ok := v.(float64); ok {
				r.vm.Print(0, formatNumber(n))
			} else {
				r.vm.Print(0, v.(string))
			}
		}
	}
	if s.newline {
		r.vm.Print(0, "\r\n")
	}
	return flowNext, nil
}

type assignStmt struct {
	name string
	x    expr
}

func (s *assignStmt) exec(r *runner) (flow, error) {
	v, err := s.x.eval(r)
	if err != nil {
		return flowNext, err
	}
	if _, isStr := v.(string); isStr != isStringName(s.name) {
		return flowNext, r.vm.Raise(cpcvm.ErrTypeMismatch)
	}
	r.vm.SetVar(s.name, v)
	return flowNext, nil
}

type gotoStmt struct {
	line int
}

func (s *gotoStmt) exec(r *runner) (flow, error) {
	r.vm.SetCursor(cpcvm.Cursor{Line: s.line})
	return flowJump, nil
}

type gosubStmt struct {
	line int
}

func (s *gosubStmt) exec(r *runner) (flow, error) {
	r.vm.Gosub(r.next(), s.line)
	return flowJump, nil
}

type returnStmt struct{}

func (returnStmt) exec(r *runner) (flow, error) {
	if err := r.vm.Return(); err != nil {
		return flowNext, err
	}
	return flowJump, nil
}

// ifStmt falls through into the THEN statements that follow it on the
// line, or jumps to falseTarget.
type ifStmt struct {
	cond        expr
	falseTarget int
}

func (s *ifStmt) exec(r *runner) (flow, error) {
	v, err := r.number(s.cond)
	if err != nil {
		return flowNext, err
	}
	if v != 0 {
		return flowNext, nil
	}
	r.vm.SetCursor(cpcvm.Cursor{Line: r.lineNum, Stmt: s.falseTarget})
	return flowJump, nil
}

// localJump skips the ELSE part after a THEN part ran.
type localJump struct {
	target int
}

func (s *localJump) exec(r *runner) (flow, error) {
	r.vm.SetCursor(cpcvm.Cursor{Line: r.lineNum, Stmt: s.target})
	return flowJump, nil
}

type inputStmt struct {
	prompt string
	names  []string
}

func (s *inputStmt) exec(r *runner) (flow, error) {
	vm := r.vm
	at := vm.Cursor()
	vm.RequestInput(0, s.prompt, func(line string) {
		if !s.accept(vm, line) {
			vm.Print(0, "?Redo from start\r\n")
			return
		}
		vm.SetCursor(cpcvm.Cursor{Line: at.Line, Stmt: at.Stmt + 1})
	})
	return flowYield, nil
}

func (s *inputStmt) accept(vm *cpcvm.VM, line string) bool {
	fields := []string{line}
	if len(s.names) > 1 {
		fields = strings.Split(line, ",")
	}
	if len(fields) != len(s.names) {
		return false
	}

	values := make([]interface{}, len(fields))
	for i, name := range s.names {
		f := strings.TrimSpace(fields[i])
		if isStringName(name) {
			values[i] = strings.Trim(f, "\"")
			continue
		}
		if f == "" {
			values[i] = float64(0)
			continue
		}
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return false
		}
		values[i] = n
	}
	for i, name := range s.names {
		vm.SetVar(name, values[i])
	}
	return true
}

type endStmt struct{}

func (endStmt) exec(r *runner) (flow, error) {
	r.vm.End()
	return flowYield, nil
}

type stopStmt struct{}

func (stopStmt) exec(r *runner) (flow, error) {
	r.vm.Stop(r.lineNum)
	return flowNext, nil
}

type frameStmt struct{}

func (frameStmt) exec(r *runner) (flow, error) {
	r.vm.Frame()
	return flowNext, nil
}

type clsStmt struct{}

func (clsStmt) exec(r *runner) (flow, error) {
	r.vm.Cls()
	return flowNext, nil
}

// soundStmt is SOUND channels, period [, duration [, volume [, noise]]].
type soundStmt struct {
	args []expr
}

func (s *soundStmt) exec(r *runner) (flow, error) {
	vals := []int{0, 0, 20, 12, 0}
	for i, x := range s.args {
		n, err := r.number(x)
		if err != nil {
			return flowNext, err
		}
		vals[i] = int(toInt(n))
	}
	if vals[0] < 1 || vals[0] > 255 || vals[1] < 0 || vals[1] > 4095 || vals[3] < 0 || vals[3] > 15 {
		return flowNext, r.vm.Raise(cpcvm.ErrImproperArgument)
	}
	r.vm.QueueSound(runloop.SoundEntry{
		State:    vals[0],
		Period:   vals[1],
		Duration: vals[2],
		Volume:   vals[3],
		Noise:    vals[4],
	})
	return flowNext, nil
}

// fileStmt is LOAD, MERGE, CHAIN and RUN with a file name.
type fileStmt struct {
	command string
	name    expr
}

func (s *fileStmt) exec(r *runner) (flow, error) {
	name, err := r.str(s.name)
	if err != nil {
		return flowNext, err
	}
	r.vm.RequestFile(s.command, name)
	return flowYield, nil
}

type runStmt struct {
	line int
}

func (s *runStmt) exec(r *runner) (flow, error) {
	r.vm.SetDeferredStartLine(s.line)
	r.vm.RequestStop(runloop.ReasonRun, runloop.PriorityControl, false)
	return flowYield, nil
}

type errorStmt struct {
	code expr
}

func (s *errorStmt) exec(r *runner) (flow, error) {
	n, err := r.number(s.code)
	if err != nil {
		return flowNext, err
	}
	code := int(toInt(n))
	if code < 0 || code > 255 {
		return flowNext, r.vm.Raise(cpcvm.ErrImproperArgument)
	}
	return flowNext, r.vm.Raise(code)
}

type onErrorStmt struct {
	line int
}

func (s *onErrorStmt) exec(r *runner) (flow, error) {
	r.vm.SetOnError(s.line)
	return flowNext, nil
}

type onBreakStmt struct {
	cont bool
}

func (s *onBreakStmt) exec(r *runner) (flow, error) {
	r.vm.SetOnBreakCont(s.cont)
	return flowNext, nil
}

type onGotoStmt struct {
	x     expr
	lines []int
	gosub bool
}

func (s *onGotoStmt) exec(r *runner) (flow, error) {
	n, err := r.number(s.x)
	if err != nil {
		return flowNext, err
	}
	i := int(toInt(n))
	if i < 0 || i > 255 {
		return flowNext, r.vm.Raise(cpcvm.ErrImproperArgument)
	}
	if i == 0 || i > len(s.lines) {
		return flowNext, nil
	}
	if s.gosub {
		r.vm.Gosub(r.next(), s.lines[i-1])
	} else {
		r.vm.SetCursor(cpcvm.Cursor{Line: s.lines[i-1]})
	}
	return flowJump, nil
}

// Firmware entries CALL understands.
const (
	kmWaitChar = 0xBB06
	kmWaitKey  = 0xBB18
)

type callStmt struct {
	addr expr
}

func (s *callStmt) exec(r *runner) (flow, error) {
	n, err := r.number(s.addr)
	if err != nil {
		return flowNext, err
	}
	switch addr := toInt(n); addr {
	case kmWaitChar, kmWaitKey:
		r.vm.WaitKey()
	default:
		logger.Debug(logger.AreaVM, "CALL &%X ignored", addr)
	}
	return flowNext, nil
}

type resumeStmt struct {
	line int
	next bool
}

func (s *resumeStmt) exec(r *runner) (flow, error) {
	if err := r.vm.Resume(s.line, s.next); err != nil {
		return flowNext, err
	}
	return flowJump, nil
}

func isStringName(name string) bool {
	return strings.HasSuffix(name, "$")
}
