// Package main hosts the flacbatch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the slog logger, and
// hands a run request to internal/pipeline. Rendering (tables, JSON, the
// terminal progress bar) lives here; conversion logic does not.
package main
