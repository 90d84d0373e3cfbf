// Package sound emulates the three tone channels and their queues.
package sound

import (
	"time"

	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

const (
	NumChannels        = 3
	DefaultQueueLength = 4

	// tick is the unit of SoundEntry.Duration.
	tick            = 10 * time.Millisecond
	defaultDuration = 20
)

// Sink receives each entry that starts playing; channels is the mask of
// channels it was queued on.
type Sink func(channels int, entry runloop.SoundEntry)

// Options configures a Sound.
type Options struct {
	QueueLength int
	Enabled     bool
	Now         func() time.Time
	Sink        Sink
}

type scheduled struct {
	entry runloop.SoundEntry
	end   time.Time
}

// Sound keeps a timed queue per channel. A channel accepts an entry while
// fewer than QueueLength entries are pending on it.
type Sound struct {
	queues      [NumChannels][]scheduled
	queueLength int
	enabled     bool
	activated   bool
	now         func() time.Time
	sink        Sink
}

// New creates the sound emulation.
func New(opts Options) *Sound {
	s := &Sound{
		queueLength: opts.QueueLength,
		enabled:     opts.Enabled,
		now:         opts.Now,
		sink:        opts.Sink,
	}
	if s.queueLength <= 0 {
		s.queueLength = DefaultQueueLength
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetActivatedByUser records that a user gesture allowed audio output.
func (s *Sound) SetActivatedByUser(activated bool) {
	if activated && !s.activated {
		logger.Info(logger.AreaSound, "sound activated by user")
	}
	s.activated = activated
}

func (s *Sound) IsActivatedByUser() bool {
	return s.activated
}

// SetEnabled switches output to the sink on or off. Queue timing is
// emulated either way.
func (s *Sound) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// Scheduler drops entries that finished playing.
func (s *Sound) Scheduler() {
	now := s.now()
	for ch := range s.queues {
		q := s.queues[ch]
		n := 0
		for n < len(q) && !q[n].end.After(now) {
			n++
		}
		if n > 0 {
			s.queues[ch] = append(q[:0], q[n:]...)
		}
	}
}

// CanQueue reports whether every channel selected by state has room.
func (s *Sound) CanQueue(state int) bool {
	for ch := 0; ch < NumChannels; ch++ {
		if state&(1<<ch) == 0 {
			continue
		}
		if state&runloop.FlushQueue != 0 {
			continue
		}
		if len(s.queues[ch]) >= s.queueLength {
			return false
		}
	}
	return true
}

// Play queues entry on its channels. Callers check CanQueue first.
func (s *Sound) Play(entry runloop.SoundEntry) {
	now := s.now()
	duration := entry.Duration
	if duration < 0 {
		duration = -duration
	}
	if duration == 0 {
		duration = defaultDuration
	}

	mask := entry.State & (runloop.ChannelA | runloop.ChannelB | runloop.ChannelC)
	if mask == 0 {
		mask = runloop.ChannelA
	}
	for ch := 0; ch < NumChannels; ch++ {
		if mask&(1<<ch) == 0 {
			continue
		}
		if entry.State&runloop.FlushQueue != 0 {
			s.queues[ch] = nil
		}
		start := now
		if q := s.queues[ch]; len(q) > 0 && q[len(q)-1].end.After(start) {
			start = q[len(q)-1].end
		}
		s.queues[ch] = append(s.queues[ch], scheduled{
			entry: entry,
			end:   start.Add(time.Duration(duration) * tick),
		})
	}

	logger.Debug(logger.AreaSound, "sound channels %d period %d duration %d", mask, entry.Period, entry.Duration)
	if s.enabled && s.sink != nil {
		s.sink(mask, entry)
	}
}

// Reset empties all queues.
func (s *Sound) Reset() {
	for ch := range s.queues {
		s.queues[ch] = nil
	}
}

// Frequency converts a tone period to Hz.
func Frequency(period int) float64 {
	if period <= 0 {
		return 0
	}
	return 62500 / float64(period)
}
