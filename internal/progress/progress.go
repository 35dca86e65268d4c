// Package progress carries per-file completion events from worker pools to
// whatever is rendering them. Publishing never blocks a worker: events that
// do not fit in the buffer are dropped and counted.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"flacbatch/internal/logging"
	"flacbatch/internal/media"
)

// Stage names the pool that produced an event.
type Stage string

const (
	StageStaging    Stage = "staging"
	StageConversion Stage = "conversion"
)

// DefaultBuffer is the event buffer used when NewSink receives a non-positive size.
const DefaultBuffer = 256

// Event reports one completed unit of work.
type Event struct {
	Stage   Stage
	Done    int
	Total   int
	RelPath string
	Outcome media.Outcome
	Message string
	Bytes   int64
}

// Publisher accepts progress events without blocking.
type Publisher interface {
	Publish(Event)
}

// Sink is a buffered, drop-on-overflow event channel. The zero value is not
// usable; construct with NewSink. A nil *Sink discards everything.
type Sink struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64
}

// NewSink returns a sink with the given buffer size.
func NewSink(buffer int) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Sink{ch: make(chan Event, buffer)}
}

// Publish enqueues ev or drops it if the buffer is full or the sink is closed.
func (s *Sink) Publish(ev Event) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side. It is closed by Close.
func (s *Sink) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *Sink) Dropped() int64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Close stops accepting events and closes the channel. Safe to call twice.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Consume drains events until the channel closes, handing each to every fn.
// It returns a channel closed once draining finishes.
func Consume(events <-chan Event, fns ...func(Event)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			for _, fn := range fns {
				fn(ev)
			}
		}
	}()
	return done
}

// LogConsumer returns an event handler that logs failures at warn level and
// sampled progress at info level.
func LogConsumer(logger *slog.Logger, sampler *logging.ProgressSampler) func(Event) {
	logger = logging.NewComponentLogger(logger, "progress")
	return func(ev Event) {
		if ev.Outcome == media.OutcomeFailure {
			logging.WarnWithContext(logger, "file failed",
				string(ev.Stage)+"_file_failed",
				logging.String(logging.FieldStage, string(ev.Stage)),
				logging.String(logging.FieldRelPath, ev.RelPath),
				logging.String("reason", ev.Message),
				logging.String(logging.FieldImpact, "file excluded from output"),
				logging.String(logging.FieldErrorHint, "see failure list in the run summary"),
			)
		}
		if !sampler.ShouldLog(string(ev.Stage), ev.Done, ev.Total) {
			return
		}
		logger.Info("progress",
			logging.String(logging.FieldStage, string(ev.Stage)),
			logging.Int("done", ev.Done),
			logging.Int("total", ev.Total),
		)
	}
}
