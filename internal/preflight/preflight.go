package preflight

import (
	"context"

	"flacbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Target describes the directories a run will touch.
type Target struct {
	InputDir   string
	OutputDir  string
	Stage      bool
	StagingDir string
}

// RunAll executes all applicable preflight checks for a run.
func RunAll(ctx context.Context, cfg *config.Config, target Target) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Input directory", target.InputDir),
		CheckCreatableDirectory("Output directory", target.OutputDir),
	}
	if target.Stage {
		stagingDir := target.StagingDir
		if stagingDir == "" {
			stagingDir = cfg.Paths.StagingDir
		}
		results = append(results, CheckCreatableDirectory("Staging directory", stagingDir))
	}
	results = append(results, CheckTranscoder(ctx, cfg))
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
