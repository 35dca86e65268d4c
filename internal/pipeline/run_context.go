package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"flacbatch/internal/logging"
	"flacbatch/internal/progress"
)

// RunContext carries the state of a single run: identity, logger, progress
// sink, and the cooperative cancellation flag.
type RunContext struct {
	ID        string
	StartedAt time.Time
	Logger    *slog.Logger
	Sink      *progress.Sink

	cancelled atomic.Bool
}

// NewRunContext creates a run with a fresh ID. A nil sink disables progress.
func NewRunContext(logger *slog.Logger, sink *progress.Sink) *RunContext {
	id := uuid.NewString()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunContext{
		ID:        id,
		StartedAt: time.Now(),
		Logger:    logger.With(logging.String(logging.FieldRunID, id)),
		Sink:      sink,
	}
}

// Cancel stops new work from being submitted. Running jobs are left to finish.
func (rc *RunContext) Cancel() {
	rc.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (rc *RunContext) Cancelled() bool {
	return rc.cancelled.Load()
}
