package media

import (
	"path/filepath"
	"time"
)

// SourceFile is a discovered input file. Path is absolute; RelPath is relative
// to the original input root and is what the destination layout mirrors.
type SourceFile struct {
	Path    string
	Size    int64
	RelPath string
}

// WithPath returns a copy that points at a different physical file while
// keeping the original relative path and size.
func (f SourceFile) WithPath(path string) SourceFile {
	f.Path = path
	return f
}

// OutputRelPath maps the relative path to its converted counterpart by
// swapping the extension.
func (f SourceFile) OutputRelPath(ext string) string {
	rel := filepath.ToSlash(f.RelPath)
	stem := rel[:len(rel)-len(filepath.Ext(rel))]
	return filepath.FromSlash(stem + ext)
}

// TotalSize sums the size of files.
func TotalSize(files []SourceFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Outcome tags a JobResult.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Reason classifies a failed job.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonExitCode      Reason = "exit_code"
	ReasonTimeout       Reason = "timeout"
	ReasonOutputMissing Reason = "output_missing"
	ReasonCancelled     Reason = "cancelled"
	ReasonUnexpected    Reason = "unexpected"
)

// JobResult is the outcome of converting one file. Failures never carry an
// output byte count.
type JobResult struct {
	RelPath     string        `json:"rel_path"`
	OutputPath  string        `json:"output_path,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Reason      Reason        `json:"reason,omitempty"`
	Message     string        `json:"message"`
	ExitCode    int           `json:"exit_code,omitempty"`
	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Succeeded builds a success result.
func Succeeded(rel, output string, inBytes, outBytes int64, elapsed time.Duration, message string) JobResult {
	return JobResult{
		RelPath:     rel,
		OutputPath:  output,
		Outcome:     OutcomeSuccess,
		Message:     message,
		InputBytes:  inBytes,
		OutputBytes: outBytes,
		Elapsed:     elapsed,
	}
}

// Failed builds a failure result.
func Failed(rel string, reason Reason, inBytes int64, elapsed time.Duration, message string) JobResult {
	return JobResult{
		RelPath:    rel,
		Outcome:    OutcomeFailure,
		Reason:     reason,
		Message:    message,
		InputBytes: inBytes,
		Elapsed:    elapsed,
	}
}

// OK reports whether the job succeeded.
func (r JobResult) OK() bool { return r.Outcome == OutcomeSuccess }

// CompressionPercent is (1 - out/in) * 100 for successful jobs, else 0.
func (r JobResult) CompressionPercent() float64 {
	if !r.OK() || r.InputBytes <= 0 {
		return 0
	}
	return (1 - float64(r.OutputBytes)/float64(r.InputBytes)) * 100
}
