package program

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidStep  = errors.New("invalid renumber step")
	ErrLineOverflow = errors.New("line number overflow")
)

// RenumberOptions configures Renumber. Zero values default to 10.
type RenumberOptions struct {
	New  int // first new line number
	Step int
}

// jumpKeywords are followed by line numbers that Renumber rewrites.
var jumpKeywords = []string{"GOTO", "GOSUB", "RESTORE", "THEN", "ELSE"}

// Renumber gives the lines new numbers and rewrites the line references
// after GOTO, GOSUB, RESTORE, THEN and ELSE, including comma lists.
// References to lines that do not exist are left alone.
func Renumber(text string, opts RenumberOptions) (string, error) {
	if opts.New == 0 {
		opts.New = 10
	}
	if opts.Step == 0 {
		opts.Step = 10
	}
	if opts.Step < 0 || opts.New < 0 {
		return "", fmt.Errorf("%w: start %d, step %d", ErrInvalidStep, opts.New, opts.Step)
	}

	lines := codeLines(text)
	if len(lines) == 0 {
		return text, nil
	}
	last := opts.New + (len(lines)-1)*opts.Step
	if last > MaxLineNumber {
		return "", fmt.Errorf("%w: last line would be %d", ErrLineOverflow, last)
	}

	mapping := make(map[int]int, len(lines))
	for i, l := range lines {
		if _, seen := mapping[l.Number]; l.Number > 0 && !seen {
			mapping[l.Number] = opts.New + i*opts.Step
		}
	}

	out := make([]Line, len(lines))
	for i, l := range lines {
		num := opts.New + i*opts.Step
		rest := strings.TrimLeft(l.Text, " \t")
		if l.Number > 0 {
			rest = strings.TrimLeft(rest, "0123456789")
		} else {
			rest = " " + rest
		}
		out[i] = Line{Number: num, Text: strconv.Itoa(num) + rewriteRefs(rest, mapping)}
	}
	return Join(out), nil
}

// codeLines returns the non-blank lines of text without carriage returns.
func codeLines(text string) []Line {
	var lines []Line
	for _, l := range Split(text) {
		l.Text = strings.TrimRight(l.Text, "\r")
		if strings.TrimSpace(l.Text) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func rewriteRefs(code string, mapping map[int]int) string {
	upper := strings.ToUpper(code)
	var b strings.Builder
	b.Grow(len(code))

	for i := 0; i < len(code); {
		ch := code[i]
		switch {
		case ch == '"':
			end := strings.IndexByte(code[i+1:], '"')
			if end < 0 {
				b.WriteString(code[i:])
				return b.String()
			}
			b.WriteString(code[i : i+end+2])
			i += end + 2
			continue
		case ch == '\'' || isRem(upper, i):
			b.WriteString(code[i:])
			return b.String()
		}

		if kw := keywordAt(upper, i); kw != "" {
			b.WriteString(code[i : i+len(kw)])
			i = rewriteNumberList(code, i+len(kw), mapping, &b)
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func keywordAt(upper string, i int) string {
	if i > 0 && isLetter(upper[i-1]) {
		return ""
	}
	for _, kw := range jumpKeywords {
		if !strings.HasPrefix(upper[i:], kw) {
			continue
		}
		next := i + len(kw)
		if next == len(upper) || upper[next] == ' ' || isDigit(upper[next]) {
			return kw
		}
	}
	return ""
}

func isRem(upper string, i int) bool {
	if i > 0 && isLetter(upper[i-1]) {
		return false
	}
	if !strings.HasPrefix(upper[i:], "REM") {
		return false
	}
	next := i + 3
	return next == len(upper) || !isLetter(upper[next])
}

// rewriteNumberList copies "  10, 20 ,30" starting at i, mapping each
// number, and returns the index after the list.
func rewriteNumberList(code string, i int, mapping map[int]int, b *strings.Builder) int {
	for {
		j := i
		for j < len(code) && code[j] == ' ' {
			j++
		}
		k := j
		for k < len(code) && isDigit(code[k]) {
			k++
		}
		b.WriteString(code[i:j])
		if k == j {
			return j
		}

		n, err := strconv.Atoi(code[j:k])
		if mapped, ok := mapping[n]; err == nil && ok {
			b.WriteString(strconv.Itoa(mapped))
		} else {
			b.WriteString(code[j:k])
		}
		i = k

		m := i
		for m < len(code) && code[m] == ' ' {
			m++
		}
		if m >= len(code) || code[m] != ',' {
			return i
		}
		b.WriteString(code[i : m+1])
		i = m + 1
	}
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
