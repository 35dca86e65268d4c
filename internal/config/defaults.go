package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultConfigPath        = "~/.config/flacbatch/config.toml"
	defaultLogDir            = "~/.local/share/flacbatch"
	defaultFFmpegBinary      = "ffmpeg"
	defaultExtension         = ".wav"
	defaultCompressionLevel  = 12
	defaultTimeoutSeconds    = 300
	defaultCopyWorkers       = 8
	defaultSafetyMargin      = 0.20
	defaultStaleStagingHours = 24
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"

	// MaxCompressionLevel is the highest FLAC compression level ffmpeg accepts.
	MaxCompressionLevel = 12
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir(),
			LogDir:     defaultLogDir,
		},
		Conversion: Conversion{
			FFmpegBinary:     defaultFFmpegBinary,
			Extension:        defaultExtension,
			Workers:          runtime.NumCPU(),
			CompressionLevel: defaultCompressionLevel,
			TimeoutSeconds:   defaultTimeoutSeconds,
		},
		Staging: Staging{
			CopyWorkers:  defaultCopyWorkers,
			SafetyMargin: defaultSafetyMargin,
			StaleHours:   defaultStaleStagingHours,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			RunLogFile: true,
		},
	}
}

func defaultStagingDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "flacbatch", "staging")
	}
	return filepath.Join(os.TempDir(), "flacbatch-staging")
}
