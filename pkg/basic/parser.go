package basic

import "github.com/antibyte/cpcrun/pkg/runloop"

// lineRef is a line number a statement jumps to, checked once all lines
// are known.
type lineRef struct {
	line int
	tok  token
}

type parser struct {
	toks  []token
	pos   int
	stmts []statement
	refs  []lineRef
	vars  map[string]bool
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOL {
		p.pos++
	}
	return t
}

func (p *parser) is(kind tokenKind, text string) bool {
	t := p.peek()
	return t.kind == kind && t.text == text
}

func (p *parser) accept(kind tokenKind, text string) bool {
	if p.is(kind, text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorAt(msg string, t token) error {
	value := t.text
	if t.kind == tokEOL {
		value = "end of line"
	}
	return &runloop.CompileError{Message: msg, Value: value, Pos: t.pos}
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.accept(kind, text) {
		return p.errorAt("Expected "+text, p.peek())
	}
	return nil
}

// endOfStatement reports whether the current statement ends here.
func (p *parser) endOfStatement() bool {
	t := p.peek()
	return t.kind == tokEOL || t.kind == tokOp && t.text == ":" || t.kind == tokKeyword && t.text == "ELSE"
}

// parseLine parses the statements of one line.
func (p *parser) parseLine() error {
	for {
		for p.accept(tokOp, ":") {
		}
		if p.peek().kind == tokEOL {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
		if p.is(tokKeyword, "ELSE") {
			return p.errorAt("Unexpected ELSE", p.peek())
		}
		if !p.endOfStatement() {
			return p.errorAt("Expected end of statement", p.peek())
		}
	}
}

// parseBranch parses the statements of a THEN or ELSE part up to ELSE or
// the end of the line. A bare line number is a GOTO.
func (p *parser) parseBranch() error {
	if p.peek().kind == tokNumber {
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		p.stmts = append(p.stmts, &gotoStmt{line: line})
		return nil
	}
	for {
		for p.accept(tokOp, ":") {
		}
		if t := p.peek(); t.kind == tokEOL || t.kind == tokKeyword && t.text == "ELSE" {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
		if !p.endOfStatement() {
			return p.errorAt("Expected end of statement", p.peek())
		}
	}
}

func (p *parser) parseIf() error {
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	st := &ifStmt{cond: cond, falseTarget: endOfLine}
	p.stmts = append(p.stmts, st)

	switch {
	case p.accept(tokKeyword, "THEN"):
		if err := p.parseBranch(); err != nil {
			return err
		}
	case p.accept(tokKeyword, "GOTO"):
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		p.stmts = append(p.stmts, &gotoStmt{line: line})
	default:
		return p.errorAt("Expected THEN", p.peek())
	}

	if !p.accept(tokKeyword, "ELSE") {
		return nil
	}
	// THEN part done, skip the ELSE part
	p.stmts = append(p.stmts, &localJump{target: endOfLine})
	st.falseTarget = len(p.stmts)
	return p.parseBranch()
}

// endOfLine as a statement index continues with the next line.
const endOfLine = 1 << 30

// lineNumber parses a jump target and records it for checking.
func (p *parser) lineNumber() (int, error) {
	t := p.next()
	if t.kind != tokNumber || t.num != float64(int(t.num)) || t.num < 0 || t.num > 65535 {
		return 0, p.errorAt("Line number expected", t)
	}
	line := int(t.num)
	p.refs = append(p.refs, lineRef{line: line, tok: t})
	return line, nil
}

func (p *parser) identifier() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", p.errorAt("Variable expected", t)
	}
	return t.text, nil
}

func (p *parser) add(s statement) error {
	p.stmts = append(p.stmts, s)
	return nil
}

func (p *parser) parseStatement() error {
	t := p.peek()
	if t.kind == tokIdent {
		return p.parseAssign()
	}
	if t.kind != tokKeyword {
		return p.errorAt("Syntax error", t)
	}
	p.next()

	switch t.text {
	case "LET":
		return p.parseAssign()
	case "PRINT":
		return p.parsePrint()
	case "IF":
		return p.parseIf()
	case "GOTO":
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		return p.add(&gotoStmt{line: line})
	case "GOSUB":
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		return p.add(&gosubStmt{line: line})
	case "RETURN":
		return p.add(returnStmt{})
	case "INPUT":
		return p.parseInput()
	case "END":
		return p.add(endStmt{})
	case "STOP":
		return p.add(stopStmt{})
	case "FRAME":
		return p.add(frameStmt{})
	case "CLS":
		return p.add(clsStmt{})
	case "SOUND":
		args, err := p.parseArgs(2, 5)
		if err != nil {
			return err
		}
		return p.add(&soundStmt{args: args})
	case "LOAD", "MERGE", "CHAIN":
		x, err := p.parseExpr()
		if err != nil {
			return err
		}
		commands := map[string]string{
			"LOAD":  runloop.FileCommandLoad,
			"MERGE": runloop.FileCommandMerge,
			"CHAIN": runloop.FileCommandChain,
		}
		return p.add(&fileStmt{command: commands[t.text], name: x})
	case "RUN":
		return p.parseRun()
	case "ERROR":
		x, err := p.parseExpr()
		if err != nil {
			return err
		}
		return p.add(&errorStmt{code: x})
	case "ON":
		return p.parseOn()
	case "CALL":
		args, err := p.parseArgs(1, 32)
		if err != nil {
			return err
		}
		return p.add(&callStmt{addr: args[0]})
	case "RESUME":
		return p.parseResume()
	}
	return p.errorAt("Unknown command", t)
}

func (p *parser) parseAssign() error {
	name, err := p.identifier()
	if err != nil {
		return err
	}
	if _, ok := functions[name]; ok {
		return p.errorAt("Syntax error", p.toks[p.pos-1])
	}
	if err := p.expect(tokOp, "="); err != nil {
		return err
	}
	x, err := p.parseExpr()
	if err != nil {
		return err
	}
	p.vars[name] = true
	return p.add(&assignStmt{name: name, x: x})
}

func (p *parser) parsePrint() error {
	s := &printStmt{newline: true}
	for !p.endOfStatement() {
		if p.is(tokOp, ";") || p.is(tokOp, ",") {
			s.items = append(s.items, printItem{sep: p.next().text})
			s.newline = false
			continue
		}
		x, err := p.parseExpr()
		if err != nil {
			return err
		}
		s.items = append(s.items, printItem{x: x})
		s.newline = true
	}
	return p.add(s)
}

func (p *parser) parseInput() error {
	prompt := "? "
	if t := p.peek(); t.kind == tokString {
		p.next()
		switch {
		case p.accept(tokOp, ";"):
			prompt = t.text + "? "
		case p.accept(tokOp, ","):
			prompt = t.text
		default:
			return p.errorAt("Expected ;", p.peek())
		}
	}

	var names []string
	for {
		name, err := p.identifier()
		if err != nil {
			return err
		}
		names = append(names, name)
		p.vars[name] = true
		if !p.accept(tokOp, ",") {
			break
		}
	}
	return p.add(&inputStmt{prompt: prompt, names: names})
}

func (p *parser) parseRun() error {
	switch t := p.peek(); {
	case p.endOfStatement():
		return p.add(&runStmt{})
	case t.kind == tokNumber:
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		return p.add(&runStmt{line: line})
	}
	x, err := p.parseExpr()
	if err != nil {
		return err
	}
	return p.add(&fileStmt{command: runloop.FileCommandRun, name: x})
}

func (p *parser) parseOn() error {
	switch {
	case p.accept(tokKeyword, "ERROR"):
		if err := p.expect(tokKeyword, "GOTO"); err != nil {
			return err
		}
		t := p.peek()
		if t.kind == tokNumber && t.num == 0 {
			p.next()
			return p.add(&onErrorStmt{})
		}
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		return p.add(&onErrorStmt{line: line})

	case p.accept(tokKeyword, "BREAK"):
		switch {
		case p.accept(tokKeyword, "CONT"):
			return p.add(&onBreakStmt{cont: true})
		case p.accept(tokKeyword, "STOP"):
			return p.add(&onBreakStmt{})
		}
		return p.errorAt("Expected CONT or STOP", p.peek())
	}

	x, err := p.parseExpr()
	if err != nil {
		return err
	}
	s := &onGotoStmt{x: x}
	switch {
	case p.accept(tokKeyword, "GOTO"):
	case p.accept(tokKeyword, "GOSUB"):
		s.gosub = true
	default:
		return p.errorAt("Expected GOTO or GOSUB", p.peek())
	}
	for {
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		s.lines = append(s.lines, line)
		if !p.accept(tokOp, ",") {
			break
		}
	}
	return p.add(s)
}

func (p *parser) parseResume() error {
	if p.accept(tokKeyword, "NEXT") {
		return p.add(&resumeStmt{next: true})
	}
	if p.peek().kind == tokNumber {
		line, err := p.lineNumber()
		if err != nil {
			return err
		}
		return p.add(&resumeStmt{line: line})
	}
	return p.add(&resumeStmt{})
}

// parseArgs parses a comma separated list of min to max expressions.
func (p *parser) parseArgs(min, max int) ([]expr, error) {
	var args []expr
	for {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, x)
		if !p.accept(tokOp, ",") {
			break
		}
	}
	if len(args) < min || len(args) > max {
		return nil, p.errorAt("Wrong number of arguments", p.peek())
	}
	return args, nil
}

// Expressions, lowest precedence first.

func (p *parser) parseExpr() (expr, error) {
	return p.parseBinary(0)
}

var precedence = [][]string{
	{"OR"},
	{"AND"},
	nil, // NOT
	{"=", "<>", "<", ">", "<=", ">="},
	{"+", "-"},
	{"MOD"},
	{"\\"},
	{"*", "/"},
}

func (p *parser) binaryOp(level int) (string, bool) {
	t := p.peek()
	if t.kind != tokOp && t.kind != tokKeyword {
		return "", false
	}
	for _, op := range precedence[level] {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseBinary(level int) (expr, error) {
	if level == len(precedence) {
		return p.parseUnary()
	}
	if precedence[level] == nil {
		if p.accept(tokKeyword, "NOT") {
			x, err := p.parseBinary(level)
			if err != nil {
				return nil, err
			}
			return &unaryExpr{op: "NOT", x: x}, nil
		}
		return p.parseBinary(level + 1)
	}

	x, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.binaryOp(level)
		if !ok {
			return x, nil
		}
		p.next()
		y, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{op: op, x: x, y: y}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.accept(tokOp, "-") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "-", x: x}, nil
	}
	if p.accept(tokOp, "+") {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOp, "^") {
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{op: "^", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberLit(t.num), nil
	case tokString:
		return stringLit(t.text), nil
	case tokIdent:
		def, ok := functions[t.text]
		if !ok {
			if t.text != "ERR" && t.text != "ERL" {
				p.vars[t.text] = true
			}
			return varRef(t.text), nil
		}
		if err := p.expect(tokOp, "("); err != nil {
			return nil, err
		}
		args, err := p.parseArgs(def.args, def.args)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokOp, ")"); err != nil {
			return nil, err
		}
		return &callExpr{name: t.text, args: args}, nil
	case tokOp:
		if t.text == "(" {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokOp, ")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, p.errorAt("Operand expected", t)
}
