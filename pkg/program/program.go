// Package program works on line-numbered program text.
package program

import (
	"strconv"
	"strings"
)

// MaxLineNumber is the highest line number a program may use.
const MaxLineNumber = 65535

// Line is one line of program text.
type Line struct {
	Number int    // 0 if the line has no number
	Text   string // the complete line, number included
}

// ParseLine splits a program line into its number and its code.
// It returns false if the line does not start with a positive number.
func ParseLine(line string) (int, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, "", false
	}

	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, "", false
	}
	num, err := strconv.Atoi(line[:end])
	if err != nil || num <= 0 {
		return 0, "", false
	}
	return num, strings.TrimSpace(line[end:]), true
}

// Split returns the lines of text in order, verbatim. A single trailing
// newline ends the last line and does not start another one.
func Split(text string) []Line {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, s := range raw {
		num, _, _ := ParseLine(s)
		lines[i] = Line{Number: num, Text: s}
	}
	return lines
}

// Join joins lines with newlines.
func Join(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

// Merge merges two programs with ascending line numbers. Where both have
// a line with the same number, the line from b is kept. Lines only in a
// survive. Lines without a number stay where their program put them, and
// the result ends with a newline when a did.
func Merge(a, b string) string {
	la, lb := Split(a), Split(b)
	out := make([]Line, 0, len(la)+len(lb))

	i, j := 0, 0
	for i < len(la) && j < len(lb) {
		na, nb := la[i].Number, lb[j].Number
		switch {
		case na == 0:
			out = append(out, la[i])
			i++
		case nb == 0:
			out = append(out, lb[j])
			j++
		case na < nb:
			out = append(out, la[i])
			i++
		case na == nb:
			out = append(out, lb[j])
			i++
			j++
		default:
			out = append(out, lb[j])
			j++
		}
	}
	out = append(out, la[i:]...)
	out = append(out, lb[j:]...)

	merged := Join(out)
	if strings.HasSuffix(a, "\n") || (a == "" && strings.HasSuffix(b, "\n")) {
		merged += "\n"
	}
	return merged
}
