// Package logging assembles structured slog loggers and formatting helpers used
// across flacbatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with the run ID, stage, and relative file path. A fanout
// handler lets a run duplicate its log into a per-run file beside the
// converted output.
package logging
