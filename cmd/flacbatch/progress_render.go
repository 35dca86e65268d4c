package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"flacbatch/internal/progress"
)

// progressRenderer draws one bar per pool. It is driven from the single
// progress.Consume goroutine and needs no locking.
type progressRenderer struct {
	out   io.Writer
	stage progress.Stage
	bar   *progressbar.ProgressBar
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{out: out}
}

func (r *progressRenderer) handle(ev progress.Event) {
	if r.bar == nil || ev.Stage != r.stage {
		r.finish()
		r.stage = ev.Stage
		r.bar = progressbar.NewOptions(ev.Total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(stageLabel(ev.Stage)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(32),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(r.out, "\n") }),
		)
	}
	_ = r.bar.Set(ev.Done)
}

func (r *progressRenderer) finish() {
	if r == nil || r.bar == nil {
		return
	}
	if !r.bar.IsFinished() {
		_ = r.bar.Finish()
	}
	r.bar = nil
}

func stageLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageStaging:
		return "Staging   "
	case progress.StageConversion:
		return "Converting"
	default:
		return string(stage)
	}
}
