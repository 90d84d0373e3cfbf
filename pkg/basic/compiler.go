// Package basic compiles a subset of Locomotive BASIC for the cpcvm
// machine.
package basic

import (
	"sort"
	"strconv"
	"strings"

	"github.com/antibyte/cpcrun/pkg/cpcvm"
	"github.com/antibyte/cpcrun/pkg/program"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

type line struct {
	num   int
	stmts []statement
}

// Program is a compiled BASIC program.
type Program struct {
	lines []line
}

// Compiler implements runloop.Compiler.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile translates source. Lines must be numbered; a later line with
// the same number replaces an earlier one.
func (c *Compiler) Compile(source string) (*runloop.CompiledProgram, error) {
	byNumber := make(map[int]line)
	var refs []lineRef
	vars := make(map[string]bool)

	offset := 0
	for _, raw := range strings.Split(source, "\n") {
		start := offset
		offset += len(raw) + 1
		text := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		num, code, ok := program.ParseLine(text)
		if !ok || num > program.MaxLineNumber {
			return nil, &runloop.CompileError{Message: "Line number expected", Value: strings.TrimSpace(text), Pos: start}
		}
		toks, err := lexLine(code, start+codeOffset(text))
		if err != nil {
			return nil, err
		}
		p := &parser{toks: toks, vars: vars}
		if err := p.parseLine(); err != nil {
			return nil, err
		}
		byNumber[num] = line{num: num, stmts: p.stmts}
		refs = append(refs, p.refs...)
	}

	for _, ref := range refs {
		if _, ok := byNumber[ref.line]; !ok {
			return nil, &runloop.CompileError{Message: "Line does not exist", Value: strconv.Itoa(ref.line), Pos: ref.tok.pos}
		}
	}

	prog := &Program{lines: make([]line, 0, len(byNumber))}
	for _, l := range byNumber {
		prog.lines = append(prog.lines, l)
	}
	sort.Slice(prog.lines, func(i, j int) bool { return prog.lines[i].num < prog.lines[j].num })

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	return &runloop.CompiledProgram{Program: prog, Variables: names}, nil
}

// codeOffset returns where the code of a numbered line starts.
func codeOffset(text string) int {
	i := 0
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	for i < len(text) && isDigit(text[i]) {
		i++
	}
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}

// Execute runs statements until the machine stops.
func (p *Program) Execute(v runloop.VM) error {
	vm, ok := v.(*cpcvm.VM)
	if !ok {
		return runloop.ErrUnsupportedVM
	}
	r := &runner{p: p, vm: vm}

	for vm.StopState().Runnable() {
		s, ok := r.locate(vm.Cursor())
		if !ok {
			vm.End()
			return nil
		}
		f, err := s.exec(r)
		if err != nil {
			return err
		}
		switch f {
		case flowNext:
			vm.SetCursor(r.next())
		case flowJump:
			if !vm.LoopCondition() {
				return nil
			}
		case flowYield:
			return nil
		}
	}
	return nil
}

type runner struct {
	p       *Program
	vm      *cpcvm.VM
	lineNum int
	stmtIdx int
}

// locate finds the statement at c. A statement index past the end of
// a line continues with the next line.
func (r *runner) locate(c cpcvm.Cursor) (statement, bool) {
	lines := r.p.lines
	i := sort.Search(len(lines), func(i int) bool { return lines[i].num >= c.Line })
	stmt := c.Stmt
	for ; i < len(lines); i++ {
		if stmt < len(lines[i].stmts) {
			r.lineNum, r.stmtIdx = lines[i].num, stmt
			r.vm.SetCursor(cpcvm.Cursor{Line: r.lineNum, Stmt: stmt})
			return lines[i].stmts[stmt], true
		}
		stmt = 0
	}
	return nil, false
}

func (r *runner) next() cpcvm.Cursor {
	return cpcvm.Cursor{Line: r.lineNum, Stmt: r.stmtIdx + 1}
}

func (r *runner) number(x expr) (float64, error) {
	v, err := x.eval(r)
	if err != nil {
		return 0, err
	}
	n, ok := v.(float64)
	if !ok {
		return 0, r.vm.Raise(cpcvm.ErrTypeMismatch)
	}
	return n, nil
}

func (r *runner) str(x expr) (string, error) {
	v, err := x.eval(r)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", r.vm.Raise(cpcvm.ErrTypeMismatch)
	}
	return s, nil
}
