package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"flacbatch/internal/fileutil"
	"flacbatch/internal/logging"
	"flacbatch/internal/media"
	"flacbatch/internal/progress"
	"flacbatch/internal/services"
)

// DefaultCopyWorkers caps the copy pool.
const DefaultCopyWorkers = 8

// CancelledMessage is the failure message for files skipped after cancellation.
const CancelledMessage = "cancelled"

// Entry maps a source file to its staged copy.
type Entry struct {
	Source     media.SourceFile
	StagedPath string
	Bytes      int64
	// Throughput is bytes per second for this copy.
	Throughput float64
}

// File returns the staged copy as a SourceFile that keeps the original
// relative path.
func (e Entry) File() media.SourceFile {
	return e.Source.WithPath(e.StagedPath)
}

// Failure records a file that could not be staged.
type Failure struct {
	Path    string `json:"path"`
	RelPath string `json:"rel_path"`
	Message string `json:"message"`
}

// Result aggregates a staging pass.
type Result struct {
	Entries  []Entry
	Failures []Failure
	Bytes    int64
	Elapsed  time.Duration
}

// Files returns the staged files in relative-path order.
func (r Result) Files() []media.SourceFile {
	files := make([]media.SourceFile, 0, len(r.Entries))
	for _, e := range r.Entries {
		files = append(files, e.File())
	}
	return files
}

// Throughput is aggregate bytes per second across the pass.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}

// Stager copies files with a bounded pool.
type Stager struct {
	Workers  int
	Logger   *slog.Logger
	Progress progress.Publisher
	// Cancelled is polled before each submission and before each copy.
	Cancelled func() bool

	copyFile func(src, dst string) (int64, error)
}

// NewStager builds a stager with the given pool width (<= 0 uses the default).
func NewStager(workers int, logger *slog.Logger, publisher progress.Publisher, cancelled func() bool) *Stager {
	if workers <= 0 {
		workers = DefaultCopyWorkers
	}
	return &Stager{
		Workers:   workers,
		Logger:    logging.NewComponentLogger(logger, "staging"),
		Progress:  publisher,
		Cancelled: cancelled,
		copyFile:  fileutil.CopyFilePreserve,
	}
}

// WithCopyFunc replaces the per-file copy; nil keeps the current one.
func (s *Stager) WithCopyFunc(fn func(src, dst string) (int64, error)) *Stager {
	if fn != nil {
		s.copyFile = fn
	}
	return s
}

type copyOutcome struct {
	entry   Entry
	failure *Failure
}

// Stage copies files under stagingRoot mirroring their layout below
// sourceRoot. Partial failure is reported in Result; an error is returned only
// when no file could be staged from a non-empty input.
func (s *Stager) Stage(ctx context.Context, files []media.SourceFile, sourceRoot, stagingRoot string) (Result, error) {
	start := time.Now()
	result := Result{}
	if len(files) == 0 {
		return result, nil
	}

	logger := logging.WithContext(services.WithStage(ctx, string(progress.StageStaging)), s.Logger)
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return result, services.Wrap(services.ErrStagingTotalFailure, "staging", "create staging root", stagingRoot, err)
	}

	workers := min(max(s.Workers, 1), len(files))
	copyFile := s.copyFile
	if copyFile == nil {
		copyFile = fileutil.CopyFilePreserve
	}

	jobs := make(chan media.SourceFile)
	results := make(chan copyOutcome, len(files))

	for range workers {
		go func() {
			for file := range jobs {
				if s.cancelled(ctx) {
					results <- failed(file, file.RelPath, CancelledMessage)
					continue
				}
				results <- s.copyOne(file, sourceRoot, stagingRoot, copyFile)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, file := range files {
			if s.cancelled(ctx) {
				for _, skipped := range files[i:] {
					results <- failed(skipped, skipped.RelPath, CancelledMessage)
				}
				return
			}
			jobs <- file
		}
	}()

	logger.Info("staging files",
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.String("staging_root", stagingRoot),
	)

	for done := 1; done <= len(files); done++ {
		out := <-results
		ev := progress.Event{Stage: progress.StageStaging, Done: done, Total: len(files)}
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
			ev.RelPath = out.failure.RelPath
			ev.Outcome = media.OutcomeFailure
			ev.Message = out.failure.Message
		} else {
			result.Entries = append(result.Entries, out.entry)
			result.Bytes += out.entry.Bytes
			ev.RelPath = out.entry.Source.RelPath
			ev.Outcome = media.OutcomeSuccess
			ev.Bytes = out.entry.Bytes
		}
		if s.Progress != nil {
			s.Progress.Publish(ev)
		}
	}
	result.Elapsed = time.Since(start)

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Source.RelPath < result.Entries[j].Source.RelPath
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].RelPath < result.Failures[j].RelPath
	})

	logger.Info("staging complete",
		logging.Int("staged", len(result.Entries)),
		logging.Int("failed", len(result.Failures)),
		logging.String("bytes", logging.FormatBytes(result.Bytes)),
		logging.String("throughput", logging.FormatThroughput(result.Bytes, result.Elapsed)),
		logging.Duration("elapsed", result.Elapsed),
	)

	if len(result.Entries) == 0 {
		return result, services.Wrap(services.ErrStagingTotalFailure, "staging", "copy", fmt.Sprintf("0 of %d files staged", len(files)), nil)
	}
	return result, nil
}

func (s *Stager) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return s.Cancelled != nil && s.Cancelled()
}

func (s *Stager) copyOne(file media.SourceFile, sourceRoot, stagingRoot string, copyFile func(string, string) (int64, error)) copyOutcome {
	rel, err := RelativePath(sourceRoot, file.Path)
	if err != nil {
		return failed(file, file.RelPath, err.Error())
	}
	target := filepath.Join(stagingRoot, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failed(file, rel, fmt.Sprintf("create staging directory: %v", err))
	}
	started := time.Now()
	n, err := copyFile(file.Path, target)
	if err != nil {
		return failed(file, rel, fmt.Sprintf("copy: %v", err))
	}
	elapsed := time.Since(started)
	var throughput float64
	if elapsed > 0 {
		throughput = float64(n) / elapsed.Seconds()
	}
	src := file
	src.RelPath = rel
	return copyOutcome{entry: Entry{Source: src, StagedPath: target, Bytes: n, Throughput: throughput}}
}

func failed(file media.SourceFile, rel, message string) copyOutcome {
	return copyOutcome{failure: &Failure{Path: file.Path, RelPath: rel, Message: message}}
}

// RelativePath returns path relative to root, rejecting paths outside it. A
// file directly under root yields just its base name.
func RelativePath(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside %s", path, root)
	}
	return rel, nil
}
