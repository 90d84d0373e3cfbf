package runloop

// StopReason names why program execution is paused. The empty reason
// means the program is runnable.
type StopReason string

const (
	ReasonNone     StopReason = ""
	ReasonBreak    StopReason = "break"
	ReasonEnd      StopReason = "end"
	ReasonError    StopReason = "error"
	ReasonEscape   StopReason = "escape"
	ReasonFrame    StopReason = "frame"
	ReasonInput    StopReason = "input"
	ReasonKey      StopReason = "key"
	ReasonLoadFile StopReason = "loadFile"
	ReasonOnError  StopReason = "onError"
	ReasonParse    StopReason = "parse"
	ReasonParseRun StopReason = "parseRun"
	ReasonReset    StopReason = "reset"
	ReasonRun      StopReason = "run"
	ReasonSound    StopReason = "sound"
	ReasonStop     StopReason = "stop"
	ReasonTimer    StopReason = "timer"
)

// Priorities used with RequestStop. A request only replaces the active
// stop when its priority is at least the active one (see Preempts).
const (
	PriorityNone     = 0
	PriorityTimer    = 20
	PriorityFrame    = 40
	PrioritySound    = 43
	PriorityInput    = 45
	PriorityKey      = 45
	PriorityLoadFile = 45
	PriorityError    = 50
	PriorityStop     = 60
	PriorityBreak    = 80
	PriorityEscape   = 85
	PriorityEnd      = 90
	PriorityControl  = 99 // run, parse, parseRun, reset
)

// StopState is the single live pause state owned by the VM.
type StopState struct {
	Reason     StopReason
	Priority   int
	HoldResume bool
}

// Runnable reports whether no pause is pending.
func (s StopState) Runnable() bool {
	return s.Reason == ReasonNone
}

// SavedStop is the one-slot save area used by escape and break.
type SavedStop struct {
	Reason   StopReason
	Priority int
}

// Preempts reports whether a stop request with the given priority replaces
// current. hold forces the request regardless of priority; it is used when
// resuming a saved state or clearing a pause.
func Preempts(current StopState, priority int, hold bool) bool {
	return hold || priority >= current.Priority
}

// resumable reasons are the ones continue restores from.
func resumable(r StopReason) bool {
	return r == ReasonBreak || r == ReasonEscape || r == ReasonStop
}

// stopEnabled reports whether the stop control stays usable after the
// loop exits with reason r.
func stopEnabled(r StopReason) bool {
	return r == ReasonInput || r == ReasonKey || r == ReasonLoadFile
}

// continueEnabled reports whether continue is usable after exit with r.
func continueEnabled(r StopReason) bool {
	switch r {
	case ReasonEnd, ReasonReset, ReasonInput, ReasonKey, ReasonLoadFile, ReasonParse:
		return false
	}
	return true
}
