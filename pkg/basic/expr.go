package basic

import (
	"math"
	"strconv"
	"strings"

	"github.com/antibyte/cpcrun/pkg/cpcvm"
)

type expr interface {
	eval(r *runner) (interface{}, error)
}

type numberLit float64

func (n numberLit) eval(*runner) (interface{}, error) {
	return float64(n), nil
}

type stringLit string

func (s stringLit) eval(*runner) (interface{}, error) {
	return string(s), nil
}

type varRef string

func (v varRef) eval(r *runner) (interface{}, error) {
	switch v {
	case "ERR":
		return float64(r.vm.ErrorCode()), nil
	case "ERL":
		return float64(r.vm.ErrorLine()), nil
	}
	return r.vm.Var(string(v)), nil
}

type unaryExpr struct {
	op string
	x  expr
}

func (u *unaryExpr) eval(r *runner) (interface{}, error) {
	n, err := r.number(u.x)
	if err != nil {
		return nil, err
	}
	if u.op == "NOT" {
		return float64(^toInt(n)), nil
	}
	return -n, nil
}

type binaryExpr struct {
	op   string
	x, y expr
}

func (b *binaryExpr) eval(r *runner) (interface{}, error) {
	lv, err := b.x.eval(r)
	if err != nil {
		return nil, err
	}
	rv, err := b.y.eval(r)
	if err != nil {
		return nil, err
	}

	ls, lIsStr := lv.(string)
	rs, rIsStr := rv.(string)
	if lIsStr != rIsStr {
		return nil, r.vm.Raise(cpcvm.ErrTypeMismatch)
	}
	if lIsStr {
		switch b.op {
		case "+":
			return ls + rs, nil
		case "=", "<>", "<", ">", "<=", ">=":
			return truth(compare(b.op, strings.Compare(ls, rs))), nil
		}
		return nil, r.vm.Raise(cpcvm.ErrTypeMismatch)
	}

	l, rn := lv.(float64), rv.(float64)
	switch b.op {
	case "+":
		return l + rn, nil
	case "-":
		return l - rn, nil
	case "*":
		return l * rn, nil
	case "/":
		if rn == 0 {
			return nil, r.vm.Raise(cpcvm.ErrDivisionByZero)
		}
		return l / rn, nil
	case "\\":
		if toInt(rn) == 0 {
			return nil, r.vm.Raise(cpcvm.ErrDivisionByZero)
		}
		return float64(toInt(l) / toInt(rn)), nil
	case "MOD":
		if toInt(rn) == 0 {
			return nil, r.vm.Raise(cpcvm.ErrDivisionByZero)
		}
		return float64(toInt(l) % toInt(rn)), nil
	case "^":
		return math.Pow(l, rn), nil
	case "AND":
		return float64(toInt(l) & toInt(rn)), nil
	case "OR":
		return float64(toInt(l) | toInt(rn)), nil
	}

	cmp := 0
	if l < rn {
		cmp = -1
	} else if l > rn {
		cmp = 1
	}
	return truth(compare(b.op, cmp)), nil
}

func compare(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// truth converts a condition to the machine's -1/0.
func truth(b bool) float64 {
	if b {
		return -1
	}
	return 0
}

func toInt(f float64) int64 {
	return int64(math.Round(f))
}

// function arity and result kind
type funcDef struct {
	args   int
	strArg bool
}

var functions = map[string]funcDef{
	"ABS":  {1, false},
	"ASC":  {1, true},
	"CHR$": {1, false},
	"INT":  {1, false},
	"LEN":  {1, true},
	"STR$": {1, false},
	"VAL":  {1, true},
}

type callExpr struct {
	name string
	args []expr
}

func (c *callExpr) eval(r *runner) (interface{}, error) {
	def := functions[c.name]
	var (
		s   string
		n   float64
		err error
	)
	if def.strArg {
		s, err = r.str(c.args[0])
	} else {
		n, err = r.number(c.args[0])
	}
	if err != nil {
		return nil, err
	}

	switch c.name {
	case "ABS":
		return math.Abs(n), nil
	case "ASC":
		if s == "" {
			return nil, r.vm.Raise(cpcvm.ErrImproperArgument)
		}
		return float64(s[0]), nil
	case "CHR$":
		if n < 0 || n > 255 {
			return nil, r.vm.Raise(cpcvm.ErrImproperArgument)
		}
		return string(rune(toInt(n))), nil
	case "INT":
		return math.Floor(n), nil
	case "LEN":
		return float64(len([]rune(s))), nil
	case "STR$":
		return strings.TrimRight(formatNumber(n), " "), nil
	case "VAL":
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return float64(0), nil
		}
		return v, nil
	}
	return nil, r.vm.Raise(cpcvm.ErrSyntax)
}

// formatNumber formats like PRINT: a sign position in front and a
// trailing space.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'g', 9, 64)
	if v >= 0 {
		s = " " + s
	}
	return s + " "
}
