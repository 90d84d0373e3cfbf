package runloop

// InputRequest is a pending line input. Text is the line buffer the
// input waiter edits.
type InputRequest struct {
	Stream   int
	Text     string
	NoCRLF   bool
	Callback func(line string)
}

// File request states.
const (
	FileStateNone    = ""
	FileStateLoading = "loading"
)

// File commands.
const (
	FileCommandLoad  = "load"
	FileCommandRun   = "run"
	FileCommandMerge = "merge"
	FileCommandChain = "chain"
)

// FileRequest is a pending file operation.
type FileRequest struct {
	Command string
	Name    string
	State   string
}

// Sound channel state bits of a SOUND entry.
const (
	ChannelA    = 1
	ChannelB    = 2
	ChannelC    = 4
	HoldChannel = 64
	FlushQueue  = 128
)

// SoundEntry is a queued SOUND statement.
type SoundEntry struct {
	State    int // channel bits, rendezvous, hold and flush flags
	Period   int
	Duration int // in 1/100 s
	Volume   int
	Noise    int
}

// SoundQueue holds entries the program produced but no channel has
// accepted yet.
type SoundQueue struct {
	entries []SoundEntry
}

func (q *SoundQueue) Len() int {
	return len(q.entries)
}

func (q *SoundQueue) Push(e SoundEntry) {
	q.entries = append(q.entries, e)
}

// Front returns the oldest entry.
func (q *SoundQueue) Front() (SoundEntry, bool) {
	if len(q.entries) == 0 {
		return SoundEntry{}, false
	}
	return q.entries[0], true
}

// Shift removes and returns the oldest entry.
func (q *SoundQueue) Shift() (SoundEntry, bool) {
	e, ok := q.Front()
	if ok {
		q.entries[0] = SoundEntry{}
		q.entries = q.entries[1:]
	}
	return e, ok
}

func (q *SoundQueue) Clear() {
	q.entries = nil
}
