// Package capacity estimates whether a destination filesystem can hold a
// staged copy of the input set.
package capacity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"flacbatch/internal/media"
	"flacbatch/internal/services"
)

// DefaultSafetyMargin is added on top of the raw input size.
const DefaultSafetyMargin = 0.20

// Status is the go/no-go decision of a capacity check.
type Status string

const (
	StatusSufficient   Status = "sufficient"
	StatusInsufficient Status = "insufficient"
	StatusUnknown      Status = "unknown"
)

// Report carries the decision and the quantities behind it.
type Report struct {
	Status    Status `json:"status"`
	Path      string `json:"path"`
	Required  int64  `json:"required_bytes"`
	Available int64  `json:"available_bytes"`
	// Surplus is Available - Required; negative values are a shortfall.
	Surplus int64 `json:"surplus_bytes"`
	Err     error `json:"-"`
}

// Sufficient is true only for StatusSufficient. Unknown never counts.
func (r Report) Sufficient() bool { return r.Status == StatusSufficient }

// AsError maps a non-sufficient report to its advisory error marker.
func (r Report) AsError() error {
	switch r.Status {
	case StatusInsufficient:
		return services.Wrap(services.ErrCapacityInsufficient, "capacity", "check", fmt.Sprintf("need %d bytes, have %d at %s", r.Required, r.Available, r.Path), nil)
	case StatusUnknown:
		return services.Wrap(services.ErrCapacityUnknown, "capacity", "statfs", r.Path, r.Err)
	default:
		return nil
	}
}

// statfsFunc allows tests to stub filesystem stats. It returns bytes
// available to unprivileged users.
type statfsFunc func(path string) (available uint64, err error)

// Checker evaluates free space against a margin.
type Checker struct {
	Margin float64
	statfs statfsFunc
}

// NewChecker returns a checker using margin; non-positive margins use the default.
func NewChecker(margin float64) *Checker {
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	return &Checker{Margin: margin, statfs: realStatfs}
}

// Check is NewChecker(DefaultSafetyMargin).Check.
func Check(files []media.SourceFile, targetDir string) Report {
	return NewChecker(DefaultSafetyMargin).Check(files, targetDir)
}

// Required returns total * (1 + margin), rounded up.
func (c *Checker) Required(total int64) int64 {
	req := float64(total) * (1 + c.Margin)
	out := int64(req)
	if float64(out) < req {
		out++
	}
	return out
}

// Check queries free space on targetDir's filesystem. A target that does not
// exist yet is measured at its nearest existing ancestor.
func (c *Checker) Check(files []media.SourceFile, targetDir string) Report {
	report := Report{Required: c.Required(media.TotalSize(files))}

	probe, err := nearestExisting(targetDir)
	report.Path = probe
	if err != nil {
		report.Status = StatusUnknown
		report.Err = err
		return report
	}
	statfs := c.statfs
	if statfs == nil {
		statfs = realStatfs
	}
	avail, err := statfs(probe)
	if err != nil {
		report.Status = StatusUnknown
		report.Err = err
		return report
	}
	report.Available = clampInt64(avail)
	report.Surplus = report.Available - report.Required
	if report.Available >= report.Required {
		report.Status = StatusSufficient
	} else {
		report.Status = StatusInsufficient
	}
	return report
}

func nearestExisting(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty target path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	current := abs
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return current, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current, fmt.Errorf("no existing ancestor for %s", abs)
		}
		current = parent
	}
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
