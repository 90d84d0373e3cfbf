package basic

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/antibyte/cpcrun/pkg/cpcvm"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

// newMachine returns a VM whose frame never runs out.
func newMachine() *cpcvm.VM {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return cpcvm.New(cpcvm.Options{Now: func() time.Time { return t0 }})
}

func compile(t *testing.T, source string) *runloop.CompiledProgram {
	t.Helper()
	compiled, err := NewCompiler().Compile(source)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return compiled
}

// execute runs the program like the loop would for error handlers and
// returns the last error.
func execute(t *testing.T, vm *cpcvm.VM, compiled *runloop.CompiledProgram) error {
	t.Helper()
	var err error
	for i := 0; i < 100; i++ {
		err = compiled.Program.Execute(vm)
		if vm.StopState().Reason != runloop.ReasonOnError {
			return err
		}
		vm.RequestStop(runloop.ReasonNone, runloop.PriorityNone, true)
	}
	t.Fatal("program did not stop")
	return nil
}

func start(t *testing.T, source string) (*cpcvm.VM, *runloop.CompiledProgram, error) {
	t.Helper()
	compiled := compile(t, source)
	vm := newMachine()
	vm.PrepareRun(0, compiled.Variables)
	return vm, compiled, execute(t, vm, compiled)
}

func TestProgramOutput(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantOutput string
		wantReason runloop.StopReason
	}{
		{
			name:       "print",
			source:     "10 PRINT \"HI\";1+2\n20 END",
			wantOutput: "HI 3 \r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "print zones",
			source:     "10 PRINT 1,2",
			wantOutput: " 1            2 \r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name: "if else",
			source: "10 A=5\n" +
				"20 IF A>3 THEN PRINT \"BIG\" ELSE PRINT \"SMALL\"\n" +
				"30 IF A<3 THEN PRINT \"X\":PRINT \"Y\"\n" +
				"40 PRINT \"DONE\"",
			wantOutput: "BIG\r\nDONE\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "nested if binds else to the inner if",
			source:     "10 IF 1 THEN IF 0 THEN PRINT \"A\" ELSE PRINT \"B\"\n20 PRINT \"C\"",
			wantOutput: "B\r\nC\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "gosub",
			source:     "10 GOSUB 100\n20 PRINT \"B\"\n30 END\n100 PRINT \"A\"\n110 RETURN",
			wantOutput: "A\r\nB\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "loop",
			source:     "10 I=I+1\n20 IF I<5 THEN 10\n30 PRINT I",
			wantOutput: " 5 \r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "on goto",
			source:     "10 X=2\n20 ON X GOTO 100,200\n100 PRINT \"A\":END\n200 PRINT \"B\"",
			wantOutput: "B\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name: "error handler",
			source: "10 ON ERROR GOTO 100\n20 X=1/0\n30 PRINT \"AFTER\"\n40 END\n" +
				"100 PRINT \"ERR\";ERR;\"IN\";ERL\n110 RESUME NEXT",
			wantOutput: "ERR 11 IN 20 \r\nAFTER\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "type mismatch",
			source:     "10 A$=1",
			wantOutput: "Type mismatch in 10\r\n",
			wantReason: runloop.ReasonError,
		},
		{
			name:       "error statement",
			source:     "10 PRINT \"X\"\n20 ERROR 5",
			wantOutput: "X\r\nImproper argument in 20\r\n",
			wantReason: runloop.ReasonError,
		},
		{
			name:       "unexpected return",
			source:     "10 RETURN",
			wantOutput: "Unexpected RETURN in 10\r\n",
			wantReason: runloop.ReasonError,
		},
		{
			name:       "stop",
			source:     "10 STOP\n20 PRINT 1",
			wantOutput: "Break in 10\r\n",
			wantReason: runloop.ReasonStop,
		},
		{
			name:       "functions",
			source:     "10 PRINT LEN(\"ABC\");CHR$(65);STR$(-2);ASC(\"A\")",
			wantOutput: " 3 A-2 65 \r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "string concat and compare",
			source:     "10 A$=\"AB\"+\"C\"\n20 IF A$=\"ABC\" THEN PRINT A$",
			wantOutput: "ABC\r\n",
			wantReason: runloop.ReasonEnd,
		},
		{
			name:       "later line replaces earlier",
			source:     "10 PRINT 1\n10 PRINT 2",
			wantOutput: " 2 \r\n",
			wantReason: runloop.ReasonEnd,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, _, _ := start(t, tt.source)
			if got := vm.Output(); got != tt.wantOutput {
				t.Errorf("output = %q, want %q", got, tt.wantOutput)
			}
			if got := vm.StopState().Reason; got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestRuntimeErrorIsVMError(t *testing.T) {
	_, _, err := start(t, "10 A$=1")
	var vmErr *runloop.VMError
	if !errors.As(err, &vmErr) {
		t.Fatalf("error = %v, want *runloop.VMError", err)
	}
	if vmErr.Code != cpcvm.ErrTypeMismatch || vmErr.Line != 10 {
		t.Errorf("error = %+v, want code %d in 10", vmErr, cpcvm.ErrTypeMismatch)
	}
}

func TestInput(t *testing.T) {
	vm, compiled, _ := start(t, "10 INPUT \"NAME\";N$\n20 PRINT \"HELLO \";N$")
	if vm.StopState().Reason != runloop.ReasonInput {
		t.Fatalf("reason = %q, want input", vm.StopState().Reason)
	}
	vm.InputRequest().Callback("BOB")
	vm.RequestStop(runloop.ReasonNone, runloop.PriorityNone, true)
	execute(t, vm, compiled)

	if got, want := vm.Output(), "NAME? HELLO BOB\r\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestInputRedo(t *testing.T) {
	vm, compiled, _ := start(t, "10 INPUT X\n20 PRINT X")

	vm.InputRequest().Callback("abc")
	vm.RequestStop(runloop.ReasonNone, runloop.PriorityNone, true)
	execute(t, vm, compiled)
	if vm.StopState().Reason != runloop.ReasonInput {
		t.Fatalf("reason = %q, want input again", vm.StopState().Reason)
	}

	vm.InputRequest().Callback("7")
	vm.RequestStop(runloop.ReasonNone, runloop.PriorityNone, true)
	execute(t, vm, compiled)

	if got, want := vm.Output(), "? ?Redo from start\r\n?  7 \r\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPauseRequests(t *testing.T) {
	t.Run("sound", func(t *testing.T) {
		vm, _, _ := start(t, "10 SOUND 1,100,50\n20 PRINT \"OK\"")
		if vm.StopState().Reason != runloop.ReasonSound {
			t.Fatalf("reason = %q, want sound", vm.StopState().Reason)
		}
		entry, ok := vm.SoundQueue().Front()
		want := runloop.SoundEntry{State: 1, Period: 100, Duration: 50, Volume: 12}
		if !ok || entry != want {
			t.Errorf("queued = %+v, want %+v", entry, want)
		}
	})

	t.Run("sound channel out of range", func(t *testing.T) {
		vm, _, _ := start(t, "10 SOUND 0,100")
		if vm.ErrorCode() != cpcvm.ErrImproperArgument {
			t.Errorf("ERR = %d, want %d", vm.ErrorCode(), cpcvm.ErrImproperArgument)
		}
	})

	t.Run("run line", func(t *testing.T) {
		vm, _, _ := start(t, "10 RUN 20\n20 END")
		if vm.StopState().Reason != runloop.ReasonRun {
			t.Fatalf("reason = %q, want run", vm.StopState().Reason)
		}
		if got := vm.DeferredStartLine(); got != 20 {
			t.Errorf("DeferredStartLine() = %d, want 20", got)
		}
	})

	t.Run("load", func(t *testing.T) {
		vm, _, _ := start(t, "10 LOAD \"GAME\"")
		if vm.StopState().Reason != runloop.ReasonLoadFile {
			t.Fatalf("reason = %q, want loadFile", vm.StopState().Reason)
		}
		want := &runloop.FileRequest{Command: runloop.FileCommandLoad, Name: "GAME"}
		if diff := cmp.Diff(want, vm.FileRequest()); diff != "" {
			t.Errorf("FileRequest() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("wait key", func(t *testing.T) {
		vm, _, _ := start(t, "10 CALL &BB18\n20 END")
		if vm.StopState().Reason != runloop.ReasonKey {
			t.Errorf("reason = %q, want key", vm.StopState().Reason)
		}
	})

	t.Run("on break cont", func(t *testing.T) {
		vm, _, _ := start(t, "10 ON BREAK CONT\n20 CALL &BB18")
		if vm.Escape() {
			t.Error("Escape() = true, want false with ON BREAK CONT")
		}
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   *runloop.CompileError
	}{
		{"no line number", "PRINT 1", &runloop.CompileError{Message: "Line number expected", Value: "PRINT 1", Pos: 0}},
		{"missing target", "10 PRINT 1\n20 GOTO 50", &runloop.CompileError{Message: "Line does not exist", Value: "50", Pos: 19}},
		{"bad character", "10 PRINT @", &runloop.CompileError{Message: "Unexpected character", Value: "@", Pos: 9}},
		{"if without then", "10 IF 1 PRINT", &runloop.CompileError{Message: "Expected THEN", Value: "PRINT", Pos: 8}},
		{"unknown command", "10 NEXT", &runloop.CompileError{Message: "Unknown command", Value: "NEXT", Pos: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler().Compile(tt.source)
			var got *runloop.CompileError
			if !errors.As(err, &got) {
				t.Fatalf("Compile() error = %v, want *runloop.CompileError", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Compile() error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVariables(t *testing.T) {
	compiled := compile(t, "10 B=1:A$=\"X\"\n20 PRINT C;ERR\n30 INPUT D")
	want := []string{"A$", "B", "C", "D"}
	if diff := cmp.Diff(want, compiled.Variables); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}
}

type otherVM struct{ runloop.VM }

func TestExecuteRejectsForeignVM(t *testing.T) {
	compiled := compile(t, "10 END")
	if err := compiled.Program.Execute(otherVM{}); !errors.Is(err, runloop.ErrUnsupportedVM) {
		t.Errorf("Execute() error = %v, want %v", err, runloop.ErrUnsupportedVM)
	}
}
