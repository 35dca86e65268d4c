package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Conversion.CompressionLevel < 0 || c.Conversion.CompressionLevel > MaxCompressionLevel {
		errs = append(errs, fmt.Errorf("conversion.compression_level must be between 0 and %d, got %d", MaxCompressionLevel, c.Conversion.CompressionLevel))
	}
	if c.Conversion.Threads < 0 {
		errs = append(errs, fmt.Errorf("conversion.threads must be >= 0, got %d", c.Conversion.Threads))
	}
	if c.Staging.SafetyMargin > 10 {
		errs = append(errs, fmt.Errorf("staging.safety_margin must be a fraction (0.2 = 20%%), got %v", c.Staging.SafetyMargin))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
