package runloop

import (
	"errors"
	"fmt"
)

// Error codes the loop itself raises on the VM.
const (
	ErrCodeSyntax   = 2
	ErrCodeBrokenIn = 32 // file operation failed
)

var (
	// ErrNoFileAccess is returned by the default loader.
	ErrNoFileAccess = errors.New("local file access is not available")
	// ErrUnsupportedVM is returned when a program is run on a VM it was not built for.
	ErrUnsupportedVM = errors.New("unsupported vm")
)

// VMError is a runtime error raised by a program through the VM's own
// error channel. The VM has already reported it when the loop sees it.
type VMError struct {
	Code    int
	Line    int
	Message string
}

func (e *VMError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s in %d", e.Message, e.Line)
	}
	return e.Message
}

// CompileError describes a translation failure at a source position.
type CompileError struct {
	Message string
	Value   string
	Pos     int
}

func (e *CompileError) Error() string {
	end := e.Pos + len(e.Value)
	return fmt.Sprintf("%s: '%s' (pos %d-%d)", e.Message, e.Value, e.Pos, end)
}

// FaultError wraps a panic recovered while executing a program.
type FaultError struct {
	Value interface{}
}

func (e *FaultError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
