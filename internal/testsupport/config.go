package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"flacbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Conversion.Workers = 2
	cfgVal.Logging.RunLogFile = false

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStaging toggles the staging cache.
func WithStaging(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Staging.Enabled = enabled
	}
}

// WithFakeFFmpeg installs a stub transcoder (see WriteFakeFFmpeg) and points
// the config at it.
func WithFakeFFmpeg(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.FFmpegBinary = WriteFakeFFmpeg(b.t, filepath.Join(b.baseDir, "bin"), mode)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// Fake transcoder behaviours.
const (
	FFmpegOK        = "ok"
	FFmpegFail      = "fail"
	FFmpegNoOutput  = "nooutput"
	FFmpegSlow      = "slow"
	FFmpegNoFLAC    = "noflac"
	fakeFFmpegBytes = "fLaC-fake-stream"
)

// WriteFakeFFmpeg writes an executable shell script named ffmpeg into dir and
// returns its path. The script answers -version and -encoders and otherwise
// writes a small file at its last argument, as the real binary would.
func WriteFakeFFmpeg(t testing.TB, dir, mode string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	encoders := " A..... flac                 FLAC (Free Lossless Audio Codec)"
	if mode == FFmpegNoFLAC {
		encoders = " A..... aac                  AAC (Advanced Audio Coding)"
	}
	var body string
	switch mode {
	case FFmpegFail:
		body = "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	case FFmpegNoOutput:
		body = "exit 0\n"
	case FFmpegSlow:
		body = "exec sleep 5\n"
	default:
		body = "printf '" + fakeFFmpegBytes + "' > \"$last\"\n"
	}
	script := "#!/bin/sh\n" +
		"case \"$1\" in\n" +
		"  -version) echo 'ffmpeg version 7.1-fake'; exit 0 ;;\n" +
		"  -encoders) echo '" + encoders + "'; exit 0 ;;\n" +
		"esac\n" +
		"for last; do :; done\n" +
		body
	target := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return target
}

// FakeFFmpegOutputSize is the size of every file the OK fake writes.
const FakeFFmpegOutputSize = int64(len(fakeFFmpegBytes))
