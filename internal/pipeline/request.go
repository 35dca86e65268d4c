package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flacbatch/internal/capacity"
	"flacbatch/internal/config"
	"flacbatch/internal/media"
	"flacbatch/internal/services"
)

// OutputSuffix is appended to the input directory name to form the default
// destination.
const OutputSuffix = "_converted"

// Request describes one run.
type Request struct {
	InputDir  string
	OutputDir string
	Extension string

	Stage        bool
	StagingDir   string
	CopyWorkers  int
	SafetyMargin float64
	StaleAge     time.Duration

	Workers          int
	Threads          int
	CompressionLevel int
	Timeout          time.Duration
}

// RequestFromConfig seeds a request for inputDir from configuration.
func RequestFromConfig(cfg *config.Config, inputDir string) Request {
	return Request{
		InputDir:         inputDir,
		Extension:        cfg.Conversion.Extension,
		Stage:            cfg.Staging.Enabled,
		StagingDir:       cfg.Paths.StagingDir,
		CopyWorkers:      cfg.Staging.CopyWorkers,
		SafetyMargin:     cfg.Staging.SafetyMargin,
		StaleAge:         cfg.StaleStagingAge(),
		Workers:          cfg.Conversion.Workers,
		Threads:          cfg.Conversion.Threads,
		CompressionLevel: cfg.Conversion.CompressionLevel,
		Timeout:          cfg.JobTimeout(),
	}
}

// DefaultOutputDir returns <parent>/<name>_converted for inputDir.
func DefaultOutputDir(inputDir string) string {
	clean := filepath.Clean(inputDir)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+OutputSuffix)
}

func (r Request) normalized() (Request, error) {
	if strings.TrimSpace(r.InputDir) == "" {
		return r, services.Wrap(services.ErrValidation, "request", "input", "input directory required", nil)
	}
	abs, err := config.ExpandPath(r.InputDir)
	if err != nil {
		return r, services.Wrap(services.ErrDiscovery, "request", "resolve input", r.InputDir, err)
	}
	r.InputDir = abs
	if strings.TrimSpace(r.OutputDir) == "" {
		r.OutputDir = DefaultOutputDir(abs)
	} else if r.OutputDir, err = config.ExpandPath(r.OutputDir); err != nil {
		return r, services.Wrap(services.ErrValidation, "request", "resolve output", r.OutputDir, err)
	}
	if r.OutputDir == r.InputDir {
		return r, services.Wrap(services.ErrValidation, "request", "output", "output directory must differ from input", nil)
	}
	if r.CompressionLevel < 0 || r.CompressionLevel > config.MaxCompressionLevel {
		return r, services.Wrap(services.ErrValidation, "request", "compression", fmt.Sprintf("level %d outside 0-%d", r.CompressionLevel, config.MaxCompressionLevel), nil)
	}
	if r.Stage && strings.TrimSpace(r.StagingDir) == "" {
		return r, services.Wrap(services.ErrValidation, "request", "staging", "staging directory required when staging is enabled", nil)
	}
	if r.Stage {
		if r.StagingDir, err = config.ExpandPath(r.StagingDir); err != nil {
			return r, services.Wrap(services.ErrValidation, "request", "resolve staging", r.StagingDir, err)
		}
	}
	return r, nil
}

// Plan is the outcome of Preflight: a normalized request and the files to
// convert.
type Plan struct {
	Request    Request
	Files      []media.SourceFile
	TotalBytes int64
	// Capacity is set only when staging is enabled.
	Capacity *capacity.Report
}
