package basic

import (
	"strconv"
	"strings"

	"github.com/antibyte/cpcrun/pkg/runloop"
)

type tokenKind int

const (
	tokEOL tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokKeyword
	tokOp
)

type token struct {
	kind tokenKind
	text string // upper case for identifiers and keywords
	num  float64
	pos  int // offset in the source text
}

var keywords = map[string]bool{
	"AND": true, "CALL": true, "CHAIN": true, "CLS": true, "ELSE": true,
	"END": true, "ERROR": true, "FRAME": true, "GOSUB": true, "GOTO": true,
	"IF": true, "INPUT": true, "LET": true, "LOAD": true, "MERGE": true,
	"MOD": true, "NEXT": true, "NOT": true, "ON": true, "OR": true,
	"PRINT": true, "REM": true, "RESUME": true, "RETURN": true, "RUN": true,
	"SOUND": true, "STOP": true, "THEN": true, "BREAK": true, "CONT": true,
}

// lexLine splits the code of one line into tokens. offset is the position
// of code in the full source.
func lexLine(code string, offset int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(code) {
		ch := code[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++

		case ch == '\'':
			i = len(code)

		case ch == '"':
			end := strings.IndexByte(code[i+1:], '"')
			text := ""
			next := len(code)
			if end < 0 {
				text = code[i+1:]
			} else {
				text = code[i+1 : i+1+end]
				next = i + end + 2
			}
			toks = append(toks, token{kind: tokString, text: text, pos: offset + i})
			i = next

		case isDigit(ch) || ch == '.':
			start := i
			for i < len(code) && (isDigit(code[i]) || code[i] == '.') {
				i++
			}
			if i < len(code) && (code[i] == 'E' || code[i] == 'e') && i+1 < len(code) &&
				(isDigit(code[i+1]) || (code[i+1] == '-' || code[i+1] == '+') && i+2 < len(code) && isDigit(code[i+2])) {
				i += 2
				for i < len(code) && isDigit(code[i]) {
					i++
				}
			}
			v, err := strconv.ParseFloat(code[start:i], 64)
			if err != nil {
				return nil, &runloop.CompileError{Message: "Invalid number", Value: code[start:i], Pos: offset + start}
			}
			toks = append(toks, token{kind: tokNumber, text: code[start:i], num: v, pos: offset + start})

		case ch == '&':
			start := i
			i++
			base := 16
			if i < len(code) && (code[i] == 'X' || code[i] == 'x') {
				base = 2
				i++
			} else if i < len(code) && (code[i] == 'H' || code[i] == 'h') {
				i++
			}
			digitsStart := i
			for i < len(code) && isHexDigit(code[i]) {
				i++
			}
			v, err := strconv.ParseInt(code[digitsStart:i], base, 64)
			if err != nil {
				return nil, &runloop.CompileError{Message: "Invalid number", Value: code[start:i], Pos: offset + start}
			}
			toks = append(toks, token{kind: tokNumber, text: code[start:i], num: float64(v), pos: offset + start})

		case isLetter(ch):
			start := i
			for i < len(code) && (isLetter(code[i]) || isDigit(code[i]) || code[i] == '.') {
				i++
			}
			if i < len(code) && (code[i] == '$' || code[i] == '%' || code[i] == '!') {
				i++
			}
			word := strings.ToUpper(code[start:i])
			if word == "REM" {
				i = len(code)
				continue
			}
			kind := tokIdent
			if keywords[word] {
				kind = tokKeyword
			}
			toks = append(toks, token{kind: kind, text: word, pos: offset + start})

		default:
			n := 1
			if i+1 < len(code) {
				switch code[i : i+2] {
				case "<=", ">=", "<>", "=<", "=>":
					n = 2
				}
			}
			if n == 1 && !strings.ContainsRune("+-*/^=<>(),;:\\", rune(ch)) {
				return nil, &runloop.CompileError{Message: "Unexpected character", Value: string(ch), Pos: offset + i}
			}
			op := code[i : i+n]
			switch op {
			case "=<":
				op = "<="
			case "=>":
				op = ">="
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: offset + i})
			i += n
		}
	}
	toks = append(toks, token{kind: tokEOL, pos: offset + len(code)})
	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f'
}
