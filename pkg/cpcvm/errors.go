package cpcvm

import "strconv"

// Error codes used by the machine.
const (
	ErrUnexpectedNext   = 1
	ErrSyntax           = 2
	ErrUnexpectedReturn = 3
	ErrImproperArgument = 5
	ErrLineNotFound     = 8
	ErrDivisionByZero   = 11
	ErrTypeMismatch     = 13
	ErrUnexpectedResume = 20
	ErrUnknownCommand   = 28
	ErrBrokenIn         = 32
)

var errorTexts = []string{
	"Improper argument", // 0
	"Unexpected NEXT",
	"Syntax error",
	"Unexpected RETURN",
	"DATA exhausted",
	"Improper argument",
	"Overflow",
	"Memory full",
	"Line does not exist",
	"Subscript out of range",
	"Array already dimensioned",
	"Division by zero",
	"Invalid direct command",
	"Type mismatch",
	"String space full",
	"String too long",
	"String expression too complex",
	"Cannot CONTinue",
	"Unknown user function",
	"RESUME missing",
	"Unexpected RESUME",
	"Direct command found",
	"Operand missing",
	"Line too long",
	"EOF met",
	"File type error",
	"NEXT missing",
	"File already open",
	"Unknown command",
	"WEND missing",
	"Unexpected WEND",
	"File not open",
	"Broken in",
}

// ErrorText returns the message for an error code.
func ErrorText(code int) string {
	if code >= 0 && code < len(errorTexts) {
		return errorTexts[code]
	}
	return "Unknown error " + strconv.Itoa(code)
}
