package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"flacbatch/internal/logging"
	"flacbatch/internal/media"
	"flacbatch/internal/progress"
	"flacbatch/internal/services"
	"flacbatch/internal/transcode"
)

// CancelledMessage is the failure message for files never submitted because
// the run was cancelled.
const CancelledMessage = "cancelled before conversion started"

// Transcoder converts one file.
type Transcoder interface {
	Transcode(ctx context.Context, spec transcode.JobSpec) media.JobResult
}

// Params are the per-run conversion settings.
type Params struct {
	Workers          int
	Threads          int
	CompressionLevel int
}

func (p Params) normalized() Params {
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.Threads <= 0 {
		p.Threads = p.Workers
	}
	return p
}

// Dispatcher owns the conversion pool.
type Dispatcher struct {
	transcoder Transcoder
	logger     *slog.Logger
	progress   progress.Publisher
	cancelled  func() bool
}

// NewDispatcher wires a transcoder to a progress publisher. cancelled is
// polled between submissions; nil means never cancelled.
func NewDispatcher(transcoder Transcoder, logger *slog.Logger, publisher progress.Publisher, cancelled func() bool) *Dispatcher {
	return &Dispatcher{
		transcoder: transcoder,
		logger:     logging.NewComponentLogger(logger, "convert"),
		progress:   publisher,
		cancelled:  cancelled,
	}
}

// OutputPath maps a file to destRoot/<rel parent>/<stem>.flac.
func OutputPath(destRoot string, file media.SourceFile) string {
	return filepath.Join(destRoot, file.OutputRelPath(transcode.OutputExtension))
}

// Dispatch starts the pool and returns a channel that yields exactly one
// result per input file, then closes. Once cancelled, remaining files are
// reported as failures without being submitted; jobs already running finish
// or time out on their own.
func (d *Dispatcher) Dispatch(ctx context.Context, files []media.SourceFile, sourceRoot, destRoot string, params Params) <-chan media.JobResult {
	params = params.normalized()
	out := make(chan media.JobResult, len(files))
	if len(files) == 0 {
		close(out)
		return out
	}

	logger := logging.WithContext(services.WithStage(ctx, string(progress.StageConversion)), d.logger)
	workers := min(params.Workers, len(files))
	logger.Info("converting files",
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.Int("threads", params.Threads),
		logging.Int("compression_level", params.CompressionLevel),
		logging.String("destination", destRoot),
	)

	jobs := make(chan transcode.JobSpec)
	results := make(chan media.JobResult, len(files))

	for range workers {
		go func() {
			for spec := range jobs {
				results <- d.run(ctx, spec)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, file := range files {
			if d.isCancelled(ctx) {
				for _, skipped := range files[i:] {
					results <- media.Failed(relPath(sourceRoot, skipped), media.ReasonCancelled, skipped.Size, 0, CancelledMessage)
				}
				logger.Info("conversion cancelled",
					logging.Int("submitted", i),
					logging.Int("skipped", len(files)-i),
				)
				return
			}
			spec, err := buildSpec(file, sourceRoot, destRoot, params)
			if err != nil {
				results <- media.Failed(relPath(sourceRoot, file), media.ReasonUnexpected, file.Size, 0, err.Error())
				continue
			}
			jobs <- spec
		}
	}()

	go func() {
		defer close(out)
		for done := 1; done <= len(files); done++ {
			res := <-results
			if d.progress != nil {
				d.progress.Publish(progress.Event{
					Stage:   progress.StageConversion,
					Done:    done,
					Total:   len(files),
					RelPath: res.RelPath,
					Outcome: res.Outcome,
					Message: res.Message,
					Bytes:   res.InputBytes,
				})
			}
			out <- res
		}
	}()

	return out
}

// Run dispatches files and collects every result in completion order.
func (d *Dispatcher) Run(ctx context.Context, files []media.SourceFile, sourceRoot, destRoot string, params Params) []media.JobResult {
	results := make([]media.JobResult, 0, len(files))
	for res := range d.Dispatch(ctx, files, sourceRoot, destRoot, params) {
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) isCancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return d.cancelled != nil && d.cancelled()
}

func (d *Dispatcher) run(ctx context.Context, spec transcode.JobSpec) (res media.JobResult) {
	logger := logging.WithContext(services.WithRelPath(ctx, spec.RelPath), d.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "transcoder panicked", "transcoder_panic",
				logging.Any("panic", r),
			)
			res = media.Failed(spec.RelPath, media.ReasonUnexpected, spec.InputBytes, 0, fmt.Sprintf("transcoder panic: %v", r))
		}
	}()
	res = d.transcoder.Transcode(ctx, spec)
	if res.OK() {
		logger.Debug("file converted",
			logging.String("output", spec.OutputPath),
			logging.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
		)
	}
	return res
}

// buildSpec resolves the relative path against the original root and creates
// the destination parent directory.
func buildSpec(file media.SourceFile, sourceRoot, destRoot string, params Params) (transcode.JobSpec, error) {
	rel := relPath(sourceRoot, file)
	target := media.SourceFile{RelPath: rel}
	output := OutputPath(destRoot, target)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return transcode.JobSpec{}, fmt.Errorf("create output directory: %w", err)
	}
	return transcode.JobSpec{
		SourcePath:       file.Path,
		DestRoot:         destRoot,
		RelPath:          rel,
		OutputPath:       output,
		InputBytes:       file.Size,
		Threads:          params.Threads,
		CompressionLevel: params.CompressionLevel,
	}, nil
}

// relPath prefers the relative path recorded at discovery, which is rooted at
// the original input even for staged copies. It falls back to computing it
// from sourceRoot when absent.
func relPath(sourceRoot string, file media.SourceFile) string {
	if file.RelPath != "" {
		return file.RelPath
	}
	if rel, err := filepath.Rel(sourceRoot, file.Path); err == nil {
		return rel
	}
	return filepath.Base(file.Path)
}
