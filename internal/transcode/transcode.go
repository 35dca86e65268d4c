// Package transcode runs the external ffmpeg binary for a single file and
// classifies the outcome.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"flacbatch/internal/media"
)

var commandContext = exec.CommandContext

const (
	// DefaultBinary is looked up on PATH when no binary is configured.
	DefaultBinary = "ffmpeg"
	// DefaultTimeout bounds a single conversion.
	DefaultTimeout = 5 * time.Minute
	// OutputExtension is appended to each converted file's stem.
	OutputExtension = ".flac"

	maxStderrLines = 20
	maxStderrChars = 2000
)

// JobSpec is one unit of conversion work.
type JobSpec struct {
	SourcePath       string
	DestRoot         string
	RelPath          string
	OutputPath       string
	InputBytes       int64
	Threads          int
	CompressionLevel int
}

// Args returns the ffmpeg argument list for spec.
func (s JobSpec) Args() []string {
	threads := s.Threads
	if threads < 1 {
		threads = 1
	}
	return []string{
		"-nostdin",
		"-i", s.SourcePath,
		"-threads", strconv.Itoa(threads),
		"-c:a", "flac",
		"-compression_level", strconv.Itoa(s.CompressionLevel),
		"-y",
		"-v", "error",
		s.OutputPath,
	}
}

// FFmpeg converts files with an ffmpeg executable.
type FFmpeg struct {
	Binary  string
	Timeout time.Duration
}

// NewFFmpeg returns a transcoder for binary (default "ffmpeg") with timeout
// (default five minutes).
func NewFFmpeg(binary string, timeout time.Duration) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFmpeg{Binary: binary, Timeout: timeout}
}

// Transcode runs ffmpeg for spec and returns a tagged result. It never returns
// a success unless the process exited 0 and the output file exists.
func (f *FFmpeg) Transcode(ctx context.Context, spec JobSpec) media.JobResult {
	started := time.Now()
	fail := func(reason media.Reason, message string) media.JobResult {
		return media.Failed(spec.RelPath, reason, spec.InputBytes, time.Since(started), message)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := commandContext(jobCtx, f.Binary, spec.Args()...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return fail(media.ReasonTimeout, fmt.Sprintf("conversion timed out (>%s)", timeout))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res := fail(media.ReasonExitCode, fmt.Sprintf("ffmpeg error (code %d): %s", exitErr.ExitCode(), TrimDiagnostics(stderr.String())))
			res.ExitCode = exitErr.ExitCode()
			return res
		}
		return fail(media.ReasonUnexpected, fmt.Sprintf("launch ffmpeg: %v", err))
	}

	info, err := os.Stat(spec.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail(media.ReasonOutputMissing, "transcoder reported success but output file not found")
		}
		return fail(media.ReasonUnexpected, fmt.Sprintf("stat output: %v", err))
	}

	elapsed := time.Since(started)
	res := media.Succeeded(spec.RelPath, spec.OutputPath, spec.InputBytes, info.Size(), elapsed, "")
	res.Message = fmt.Sprintf("Converted to %s (%.1f%% smaller, %.2fs)",
		filepath.Base(spec.OutputPath), res.CompressionPercent(), elapsed.Seconds())
	return res
}

// TrimDiagnostics keeps the tail of ffmpeg's error stream readable.
func TrimDiagnostics(stderr string) string {
	text := strings.TrimSpace(stderr)
	if text == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxStderrLines {
		lines = lines[len(lines)-maxStderrLines:]
	}
	text = strings.Join(lines, "\n")
	if len(text) > maxStderrChars {
		start := len(text) - maxStderrChars
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
		text = "..." + text[start:]
	}
	return text
}
