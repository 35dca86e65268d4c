package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flacbatch/internal/capacity"
	"flacbatch/internal/config"
	"flacbatch/internal/deps"
	"flacbatch/internal/history"
	"flacbatch/internal/logging"
	"flacbatch/internal/pipeline"
	"flacbatch/internal/progress"
	"flacbatch/internal/services"
	"flacbatch/internal/summary"
	"flacbatch/internal/transcode"
)

type convertOptions struct {
	output      string
	stage       bool
	noStage     bool
	stagingDir  string
	workers     int
	threads     int
	compression int
	timeout     time.Duration
	extension   string
	yes         bool
	force       bool
	noProgress  bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <input-dir>",
		Short: "Convert every source file under a directory to FLAC",
		Long: `Convert every source file under <input-dir> to FLAC, mirroring the
directory layout into <input-dir>_converted (or --output).

With staging enabled, files are first copied to a local cache, which helps
when the input lives on a slow network share. The cache is removed when the
run ends, whether it succeeds, fails, or is interrupted.

Interrupt once to stop submitting new files; in-flight conversions finish.
Interrupt again to stop running ffmpeg processes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Destination directory (default <input>_converted)")
	flags.BoolVar(&opts.stage, "stage", false, "Copy files to the local staging cache before converting")
	flags.BoolVar(&opts.noStage, "no-stage", false, "Convert directly from the input directory")
	flags.StringVar(&opts.stagingDir, "staging-dir", "", "Staging cache root (overrides paths.staging_dir)")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Concurrent ffmpeg processes")
	flags.IntVar(&opts.threads, "threads", 0, "Thread hint passed to each ffmpeg process (default: workers)")
	flags.IntVarP(&opts.compression, "compression-level", "l", 0, fmt.Sprintf("FLAC compression level 0-%d", config.MaxCompressionLevel))
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-file conversion timeout")
	flags.StringVar(&opts.extension, "ext", "", "Source file extension to convert")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	flags.BoolVar(&opts.force, "force", false, "Proceed even when the staging filesystem is short of space")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the terminal progress bar")
	cmd.MarkFlagsMutuallyExclusive("stage", "no-stage")

	return cmd
}

func (o convertOptions) apply(cmd *cobra.Command, req *pipeline.Request) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		req.OutputDir = o.output
	}
	if flags.Changed("stage") {
		req.Stage = o.stage
	}
	if flags.Changed("no-stage") {
		req.Stage = !o.noStage
	}
	if flags.Changed("staging-dir") {
		req.StagingDir = o.stagingDir
	}
	if flags.Changed("workers") && o.workers > 0 {
		req.Workers = o.workers
	}
	if flags.Changed("threads") {
		req.Threads = o.threads
	}
	if flags.Changed("compression-level") {
		req.CompressionLevel = o.compression
	}
	if flags.Changed("timeout") && o.timeout > 0 {
		req.Timeout = o.timeout
	}
	if flags.Changed("ext") {
		req.Extension = o.extension
	}
}

func runConvert(cmd *cobra.Command, ctx *commandContext, input string, opts convertOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	status := deps.CheckFFmpegFLAC(cmd.Context(), cfg.Conversion.FFmpegBinary)
	if !status.Available {
		return services.Wrap(services.ErrExternalTool, "deps", "check ffmpeg", status.Detail, nil)
	}

	req := pipeline.RequestFromConfig(cfg, input)
	opts.apply(cmd, &req)

	p := pipeline.New(transcode.NewFFmpeg(cfg.Conversion.FFmpegBinary, req.Timeout), logger)
	plan, err := p.Preflight(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !ctx.JSONMode() {
		printPlan(out, plan)
	}
	proceed, err := confirmPlan(cmd, plan, opts)
	if err != nil {
		return err
	}
	if !proceed {
		logger.Info("conversion declined by user")
		fmt.Fprintln(cmd.ErrOrStderr(), "Conversion cancelled by user")
		return nil
	}

	runLogger := logger
	var runLogPath string
	if cfg.Logging.RunLogFile {
		runLog, err := logging.OpenRunLog(logger, plan.Request.OutputDir, time.Now(), cfg.Logging.Level)
		if err != nil {
			logging.WarnWithContext(logger, "run log unavailable", "run_log_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is logged to the console only"),
			)
		} else {
			defer runLog.Close()
			runLogger = runLog.Logger
			runLogPath = runLog.Path
		}
	}

	sink := progress.NewSink(progress.DefaultBuffer)
	rc := pipeline.NewRunContext(runLogger, sink)

	consumers := []func(progress.Event){progress.LogConsumer(rc.Logger, logging.NewProgressSampler(10))}
	var bar *progressRenderer
	if !opts.noProgress && !ctx.JSONMode() && isTerminal(out) {
		bar = newProgressRenderer(out)
		consumers = append(consumers, bar.handle)
	}
	drained := progress.Consume(sink.Events(), consumers...)

	runCtx, abort := context.WithCancel(cmd.Context())
	defer abort()
	stopWatching := watchInterrupts(rc, abort, rc.Logger)
	defer stopWatching()

	sum, runErr := p.Execute(runCtx, rc, plan)
	sink.Close()
	<-drained
	bar.finish()

	if runErr == nil || errors.Is(runErr, services.ErrStagingTotalFailure) {
		recordHistory(cmd.Context(), cfg, rc.Logger, sum)
	}

	if ctx.JSONMode() {
		report := newRunReport(sum)
		report.RunLog = runLogPath
		report.ProgressDropped = sink.Dropped()
		if runErr != nil {
			report.Error = runErr.Error()
		}
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else if sum.TotalFiles > 0 {
		fmt.Fprintln(out)
		printRunSummary(out, sum)
		if runLogPath != "" {
			fmt.Fprintf(out, "\nRun log: %s\n", runLogPath)
		}
	}

	if runErr != nil {
		return runErr
	}
	if sum.HasFailures() {
		return errRunHadFailures
	}
	return nil
}

// confirmPlan applies the capacity decision and asks the user to proceed.
func confirmPlan(cmd *cobra.Command, plan pipeline.Plan, opts convertOptions) (bool, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	prompt := cmd.ErrOrStderr()
	if report := plan.Capacity; report != nil {
		switch report.Status {
		case capacity.StatusInsufficient:
			if !opts.force {
				return false, fmt.Errorf("%w (use --force to stage anyway, or --no-stage)", report.AsError())
			}
		case capacity.StatusUnknown:
			if !opts.yes && !askYesNo(in, prompt, "Proceed without disk space verification? (y/N): ") {
				return false, nil
			}
		}
	}
	if opts.yes {
		return true, nil
	}
	return askYesNo(in, prompt, "Proceed? (y/N): "), nil
}

// askYesNo treats anything but an explicit yes, including EOF, as no.
func askYesNo(in *bufio.Reader, prompt io.Writer, question string) bool {
	fmt.Fprint(prompt, question)
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// watchInterrupts turns the first SIGINT/SIGTERM into cooperative
// cancellation and the second into context cancellation, which kills the
// running ffmpeg processes.
func watchInterrupts(rc *pipeline.RunContext, abort context.CancelFunc, logger *slog.Logger) func() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case sig := <-signals:
				received++
				if received == 1 {
					logging.WarnWithContext(logger, "interrupt received, finishing in-flight files", "run_cancel_requested",
						logging.String("signal", sig.String()),
						logging.String(logging.FieldImpact, "files not yet started are reported as cancelled"),
						logging.String(logging.FieldErrorHint, "interrupt again to stop running conversions"),
					)
					rc.Cancel()
					continue
				}
				logging.WarnWithContext(logger, "second interrupt, stopping running conversions", "run_aborted",
					logging.String("signal", sig.String()),
					logging.String(logging.FieldImpact, "partially written FLAC files are reported as failures"),
				)
				abort()
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func recordHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, sum summary.RunSummary) {
	store, err := history.Open(cfg)
	if err == nil {
		err = store.Record(ctx, sum)
		_ = store.Close()
	}
	if err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will not appear in `flacbatch history`"),
		)
	}
}
