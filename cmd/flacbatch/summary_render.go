package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"flacbatch/internal/capacity"
	"flacbatch/internal/logging"
	"flacbatch/internal/pipeline"
	"flacbatch/internal/summary"
)

// runReport is the --json form of a finished run.
type runReport struct {
	summary.RunSummary
	SuccessRate      float64 `json:"success_rate"`
	CompressionRatio float64 `json:"compression_ratio"`
	Throughput       float64 `json:"throughput_bytes_per_second"`
	RunLog           string  `json:"run_log,omitempty"`
	ProgressDropped  int64   `json:"progress_events_dropped"`
	Error            string  `json:"error,omitempty"`
}

func newRunReport(sum summary.RunSummary) runReport {
	return runReport{
		RunSummary:       sum,
		SuccessRate:      sum.SuccessRate(),
		CompressionRatio: sum.CompressionRatio(),
		Throughput:       sum.Throughput(),
	}
}

func printPlan(out io.Writer, plan pipeline.Plan) {
	req := plan.Request
	pairs := [][2]string{
		{"Input", req.InputDir},
		{"Output", req.OutputDir},
		{"Files", fmt.Sprintf("%d (%s)", len(plan.Files), logging.FormatBytes(plan.TotalBytes))},
		{"Workers", fmt.Sprintf("%d", req.Workers)},
		{"Compression level", fmt.Sprintf("%d", req.CompressionLevel)},
		{"Timeout per file", req.Timeout.String()},
	}
	if req.Stage {
		pairs = append(pairs, [2]string{"Staging", req.StagingDir})
	} else {
		pairs = append(pairs, [2]string{"Staging", "disabled (direct conversion)"})
	}
	if report := plan.Capacity; report != nil {
		pairs = append(pairs,
			[2]string{"Staging space required", logging.FormatBytes(report.Required)},
			[2]string{"Staging space available", capacityAvailable(out, report.Available, report.Status == capacity.StatusUnknown)},
			[2]string{"Staging space", capacityStatus(out, report.Status)},
		)
	}
	fmt.Fprint(out, renderKeyValues(pairs))
}

func capacityAvailable(out io.Writer, available int64, unknown bool) string {
	if unknown {
		return paint(out, "unknown", text.FgYellow)
	}
	return logging.FormatBytes(available)
}

func capacityStatus(out io.Writer, status capacity.Status) string {
	label := string(status)
	switch status {
	case capacity.StatusSufficient:
		return paint(out, label, text.FgGreen)
	case capacity.StatusInsufficient:
		return paint(out, label, text.FgRed, text.Bold)
	default:
		return paint(out, label, text.FgYellow)
	}
}

func printRunSummary(out io.Writer, sum summary.RunSummary) {
	status := paint(out, "completed", text.FgGreen)
	switch {
	case sum.Cancelled:
		status = paint(out, "cancelled", text.FgYellow)
	case sum.HasFailures():
		status = paint(out, "completed with failures", text.FgYellow)
	}
	pairs := [][2]string{
		{"Run", sum.RunID},
		{"Status", status},
		{"Files", fmt.Sprintf("%d total, %d converted, %d failed, %d not staged", sum.TotalFiles, sum.Successful, sum.Failed, sum.StagingFailed)},
		{"Success rate", logging.FormatPercent(sum.SuccessRate())},
		{"Input", logging.FormatBytes(sum.TotalInputBytes)},
		{"Output", logging.FormatBytes(sum.OutputBytes)},
		{"Space saved", logging.FormatPercent(sum.CompressionRatio())},
		{"Elapsed", sum.Elapsed.Round(time.Millisecond).String()},
		{"Throughput", logging.FormatThroughput(sum.TotalInputBytes, sum.Elapsed)},
		{"Average per file", fmt.Sprintf("%.2fs", sum.AverageSecondsPerFile())},
	}
	if sum.Staged {
		pairs = append(pairs, [2]string{"Staged", logging.FormatBytes(sum.StagedBytes)})
	}
	if sum.CleanupError != "" {
		pairs = append(pairs, [2]string{"Cleanup", paint(out, sum.CleanupError, text.FgYellow)})
	}
	fmt.Fprint(out, renderKeyValues(pairs))

	if len(sum.StagingFailures) > 0 {
		rows := make([][]string, 0, len(sum.StagingFailures))
		for _, f := range sum.StagingFailures {
			rows = append(rows, []string{f.RelPath, logging.FormatBytes(f.Bytes), f.Message})
		}
		fmt.Fprintln(out, "\nFiles that could not be staged:")
		fmt.Fprint(out, renderTable([]string{"File", "Size", "Error"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	}
	if len(sum.Failures) > 0 {
		rows := make([][]string, 0, len(sum.Failures))
		for _, f := range sum.Failures {
			rows = append(rows, []string{f.RelPath, string(f.Reason), f.Message})
		}
		fmt.Fprintln(out, "\nFailed conversions:")
		fmt.Fprint(out, renderTable([]string{"File", "Reason", "Error"}, rows, nil))
	}
}
