package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDiscovery            = errors.New("discovery error")
	ErrNoFiles              = errors.New("no matching files")
	ErrCapacityInsufficient = errors.New("insufficient disk space")
	ErrCapacityUnknown      = errors.New("disk space unknown")
	ErrStagingTotalFailure  = errors.New("no files could be staged")
	ErrExternalTool         = errors.New("external tool error")
	ErrTimeout              = errors.New("timeout")
	ErrCleanup              = errors.New("cleanup failure")
	ErrConfiguration        = errors.New("configuration error")
	ErrValidation           = errors.New("validation error")
	ErrLocked               = errors.New("destination locked")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err aborts a run before or during setup.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrCapacityInsufficient), errors.Is(err, ErrCapacityUnknown), errors.Is(err, ErrCleanup):
		return false
	default:
		return true
	}
}

// ErrorDetails pairs the classifying marker with a user-facing message.
type ErrorDetails struct {
	Marker  error
	Message string
}

// Details classifies err by its marker and returns the trimmed message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	for _, marker := range []error{
		ErrDiscovery, ErrNoFiles, ErrCapacityInsufficient, ErrCapacityUnknown,
		ErrStagingTotalFailure, ErrExternalTool, ErrTimeout, ErrCleanup,
		ErrConfiguration, ErrValidation, ErrLocked,
	} {
		if errors.Is(err, marker) {
			details.Marker = marker
			break
		}
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
