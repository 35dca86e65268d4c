// Package summary accumulates per-file results into a run report.
//
// An Aggregator has a single writer: the goroutine draining the conversion
// result channel. Workers never touch it.
package summary

import (
	"sort"
	"time"

	"flacbatch/internal/media"
)

// FileFailure is one failed conversion.
type FileFailure struct {
	RelPath string       `json:"rel_path"`
	Reason  media.Reason `json:"reason"`
	Message string       `json:"message"`
}

// StagingFailure is one file that never reached conversion because it could
// not be copied to the staging cache.
type StagingFailure struct {
	Path    string `json:"path"`
	RelPath string `json:"rel_path"`
	Message string `json:"message"`
	Bytes   int64  `json:"bytes"`
}

// RunSummary is the finalized report of one run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	InputDir  string    `json:"input_dir"`
	OutputDir string    `json:"output_dir"`
	StartedAt time.Time `json:"started_at"`
	Staged    bool      `json:"staged"`
	Cancelled bool      `json:"cancelled"`

	TotalFiles    int `json:"total_files"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
	StagingFailed int `json:"staging_failed"`

	// TotalInputBytes covers every discovered file, whatever its fate.
	TotalInputBytes int64 `json:"total_input_bytes"`
	// SuccessInputBytes and OutputBytes cover successful conversions only.
	SuccessInputBytes int64 `json:"success_input_bytes"`
	OutputBytes       int64 `json:"output_bytes"`
	StagedBytes       int64 `json:"staged_bytes"`

	Elapsed         time.Duration    `json:"elapsed"`
	Failures        []FileFailure    `json:"failures,omitempty"`
	StagingFailures []StagingFailure `json:"staging_failures,omitempty"`
	CleanupError    string           `json:"cleanup_error,omitempty"`
}

// SuccessRate is successes over total files, in [0,1].
func (s RunSummary) SuccessRate() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.TotalFiles)
}

// CompressionRatio is 1 - output/input over successful conversions.
func (s RunSummary) CompressionRatio() float64 {
	if s.SuccessInputBytes <= 0 {
		return 0
	}
	return 1 - float64(s.OutputBytes)/float64(s.SuccessInputBytes)
}

// Throughput is input bytes per second of wall clock.
func (s RunSummary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalInputBytes) / s.Elapsed.Seconds()
}

// AverageSecondsPerFile is wall clock divided by total files.
func (s RunSummary) AverageSecondsPerFile() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.TotalFiles)
}

// HasFailures reports whether any file failed to stage or convert.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0 || s.StagingFailed > 0
}

// SortedFailures returns conversion failures ordered by relative path.
func (s RunSummary) SortedFailures() []FileFailure {
	out := append([]FileFailure(nil), s.Failures...)
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Aggregator builds a RunSummary incrementally.
type Aggregator struct {
	summary RunSummary
}

// NewAggregator starts a summary for a run.
func NewAggregator(runID, inputDir, outputDir string, startedAt time.Time) *Aggregator {
	return &Aggregator{summary: RunSummary{
		RunID:     runID,
		InputDir:  inputDir,
		OutputDir: outputDir,
		StartedAt: startedAt,
	}}
}

// Add records one conversion result.
func (a *Aggregator) Add(res media.JobResult) {
	s := &a.summary
	s.TotalFiles++
	s.TotalInputBytes += res.InputBytes
	if res.OK() {
		s.Successful++
		s.SuccessInputBytes += res.InputBytes
		s.OutputBytes += res.OutputBytes
		return
	}
	s.Failed++
	if res.Reason == media.ReasonCancelled {
		s.Cancelled = true
	}
	s.Failures = append(s.Failures, FileFailure{RelPath: res.RelPath, Reason: res.Reason, Message: res.Message})
}

// AddStagingFailure records a file excluded before conversion.
func (a *Aggregator) AddStagingFailure(f StagingFailure) {
	s := &a.summary
	s.TotalFiles++
	s.StagingFailed++
	s.TotalInputBytes += f.Bytes
	s.StagingFailures = append(s.StagingFailures, f)
}

// SetStaged notes that a staging pass ran and how many bytes it copied.
func (a *Aggregator) SetStaged(bytes int64) {
	a.summary.Staged = true
	a.summary.StagedBytes = bytes
}

// MarkCancelled flags the run as cancelled.
func (a *Aggregator) MarkCancelled() {
	a.summary.Cancelled = true
}

// SetCleanupError records a non-fatal staging cleanup failure.
func (a *Aggregator) SetCleanupError(err error) {
	if err != nil {
		a.summary.CleanupError = err.Error()
	}
}

// Finalize stamps the wall clock and returns the summary with failures sorted.
func (a *Aggregator) Finalize(elapsed time.Duration) RunSummary {
	out := a.summary
	out.Elapsed = elapsed
	out.Failures = out.SortedFailures()
	out.StagingFailures = append([]StagingFailure(nil), out.StagingFailures...)
	sort.Slice(out.StagingFailures, func(i, j int) bool {
		return out.StagingFailures[i].RelPath < out.StagingFailures[j].RelPath
	})
	return out
}
