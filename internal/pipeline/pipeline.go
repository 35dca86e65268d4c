package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"flacbatch/internal/capacity"
	"flacbatch/internal/convert"
	"flacbatch/internal/logging"
	"flacbatch/internal/media"
	"flacbatch/internal/scan"
	"flacbatch/internal/services"
	"flacbatch/internal/staging"
	"flacbatch/internal/summary"
)

// LockFileName is created inside the destination while a run owns it.
const LockFileName = ".flacbatch.lock"

// resultHook observes each result on the coordinating goroutine.
var resultHook = func(media.JobResult) {}

// Pipeline wires the stages of a run together.
type Pipeline struct {
	transcoder convert.Transcoder
	capacity   *capacity.Checker
	copyFile   func(src, dst string) (int64, error)
	logger     *slog.Logger
}

// New returns a pipeline that converts with transcoder.
func New(transcoder convert.Transcoder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		transcoder: transcoder,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// WithCapacityChecker overrides the checker used by Preflight.
func (p *Pipeline) WithCapacityChecker(c *capacity.Checker) *Pipeline {
	p.capacity = c
	return p
}

// WithStagingCopy overrides how files are copied into the staging cache.
func (p *Pipeline) WithStagingCopy(fn func(src, dst string) (int64, error)) *Pipeline {
	p.copyFile = fn
	return p
}

// Preflight normalizes req, discovers files, and measures staging capacity.
// An insufficient or unknown capacity is reported in the plan, not as an
// error; the caller decides whether to proceed.
func (p *Pipeline) Preflight(ctx context.Context, req Request) (Plan, error) {
	req, err := req.normalized()
	if err != nil {
		return Plan{Request: req}, err
	}
	logger := logging.WithContext(services.WithStage(ctx, "scan"), p.logger)

	files, err := scan.ScanWithOptions(req.InputDir, scan.Options{
		Extension: req.Extension,
		Exclude:   []string{req.OutputDir, req.StagingDir},
	})
	if err != nil {
		return Plan{Request: req}, err
	}
	plan := Plan{Request: req, Files: files, TotalBytes: media.TotalSize(files)}
	if len(files) == 0 {
		ext := req.Extension
		if ext == "" {
			ext = scan.DefaultExtension
		}
		return plan, services.Wrap(services.ErrNoFiles, "scan", "discover", fmt.Sprintf("no %s files under %s", ext, req.InputDir), nil)
	}
	logger.Info("discovered files",
		logging.Int("files", len(files)),
		logging.String("total", logging.FormatBytes(plan.TotalBytes)),
		logging.String("input", req.InputDir),
	)

	if req.Stage {
		checker := p.capacity
		if checker == nil {
			checker = capacity.NewChecker(req.SafetyMargin)
		}
		report := checker.Check(files, req.StagingDir)
		plan.Capacity = &report
		switch report.Status {
		case capacity.StatusSufficient:
			logger.Info("staging capacity ok",
				logging.String("required", logging.FormatBytes(report.Required)),
				logging.String("available", logging.FormatBytes(report.Available)),
			)
		case capacity.StatusInsufficient:
			logging.WarnWithContext(logger, "insufficient space for staging", "capacity_insufficient",
				logging.String("required", logging.FormatBytes(report.Required)),
				logging.String("available", logging.FormatBytes(report.Available)),
				logging.String("path", report.Path),
				logging.String(logging.FieldImpact, "staging may fail part way through"),
				logging.String(logging.FieldErrorHint, "free space, choose another staging_dir, or disable staging"),
			)
		case capacity.StatusUnknown:
			logging.WarnWithContext(logger, "could not determine free space", "capacity_unknown",
				logging.String("path", report.Path),
				logging.Error(report.Err),
				logging.String(logging.FieldImpact, "staging proceeds without a space guarantee"),
			)
		}
	}
	return plan, nil
}

// Execute runs plan. The returned summary is valid whenever it has a RunID,
// even alongside an error. Per-file failures are never errors.
func (p *Pipeline) Execute(ctx context.Context, rc *RunContext, plan Plan) (sum summary.RunSummary, err error) {
	req := plan.Request
	ctx = services.WithRunID(ctx, rc.ID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(rc.Logger, "pipeline"))

	agg := summary.NewAggregator(rc.ID, req.InputDir, req.OutputDir, rc.StartedAt)
	finalize := func() summary.RunSummary {
		if rc.Cancelled() {
			agg.MarkCancelled()
		}
		return agg.Finalize(time.Since(rc.StartedAt))
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return finalize(), services.Wrap(services.ErrValidation, "pipeline", "create output directory", req.OutputDir, err)
	}
	unlock, err := lockDestination(req.OutputDir)
	if err != nil {
		return finalize(), err
	}
	defer unlock()

	logger.Info("run started",
		logging.Int("files", len(plan.Files)),
		logging.String("input", req.InputDir),
		logging.String("output", req.OutputDir),
		logging.Bool("staging", req.Stage),
	)

	files := plan.Files
	if req.Stage {
		stagingDir := staging.RunDir(req.StagingDir, rc.ID)
		defer func() {
			recovered := recover()
			cleanupErr := p.removeStaging(ctx, logger, stagingDir)
			if cleanupErr != nil {
				sum.CleanupError = cleanupErr.Error()
			}
			if recovered != nil {
				panic(recovered)
			}
		}()

		if req.StaleAge > 0 {
			staging.CleanStale(ctx, req.StagingDir, req.StaleAge, logger)
		}

		stager := staging.NewStager(req.CopyWorkers, rc.Logger, rc.Sink, rc.Cancelled).WithCopyFunc(p.copyFile)
		result, stageErr := stager.Stage(services.WithStage(ctx, "staging"), files, req.InputDir, stagingDir)
		sizes := make(map[string]int64, len(files))
		for _, f := range files {
			sizes[f.Path] = f.Size
		}
		for _, f := range result.Failures {
			agg.AddStagingFailure(summary.StagingFailure{Path: f.Path, RelPath: f.RelPath, Message: f.Message, Bytes: sizes[f.Path]})
		}
		agg.SetStaged(result.Bytes)
		if stageErr != nil {
			return finalize(), stageErr
		}
		files = result.Files()
	}

	dispatcher := convert.NewDispatcher(p.transcoder, rc.Logger, rc.Sink, rc.Cancelled)
	params := convert.Params{
		Workers:          req.Workers,
		Threads:          req.Threads,
		CompressionLevel: req.CompressionLevel,
	}
	for res := range dispatcher.Dispatch(ctx, files, req.InputDir, req.OutputDir, params) {
		agg.Add(res)
		resultHook(res)
	}

	sum = finalize()
	logger.Info("run finished",
		logging.Int("total", sum.TotalFiles),
		logging.Int("successful", sum.Successful),
		logging.Int("failed", sum.Failed),
		logging.Int("staging_failed", sum.StagingFailed),
		logging.String("compression", logging.FormatPercent(sum.CompressionRatio())),
		logging.String("throughput", logging.FormatThroughput(sum.TotalInputBytes, sum.Elapsed)),
		logging.Duration("elapsed", sum.Elapsed.Round(time.Millisecond)),
		logging.Bool("cancelled", sum.Cancelled),
	)
	return sum, nil
}

func (p *Pipeline) removeStaging(ctx context.Context, logger *slog.Logger, dir string) error {
	result, err := staging.Remove(dir)
	if err != nil {
		logging.WarnWithContext(logger, "failed to remove staging directory", "staging_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("remove %s manually", dir)),
			logging.String(logging.FieldImpact, "staged copies still occupy disk space"),
		)
		return err
	}
	if result.FilesRemoved > 0 {
		logging.WithContext(services.WithStage(ctx, "cleanup"), logger).Info("staging directory removed",
			logging.String("path", dir),
			logging.Int("files", result.FilesRemoved),
		)
	}
	return nil
}

func lockDestination(outputDir string) (func(), error) {
	path := filepath.Join(outputDir, LockFileName)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrLocked, "pipeline", "lock destination", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrLocked, "pipeline", "lock destination", "another run is writing to "+outputDir, nil)
	}
	// Only the lock is released; the file stays for the next run.
	return func() { _ = lock.Unlock() }, nil
}
