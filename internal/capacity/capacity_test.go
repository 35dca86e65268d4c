package capacity

import (
	"errors"
	"path/filepath"
	"testing"

	"flacbatch/internal/media"
	"flacbatch/internal/services"
)

const gb = int64(1_000_000_000)

func stubChecker(available uint64, err error) *Checker {
	c := NewChecker(0)
	c.statfs = func(string) (uint64, error) { return available, err }
	return c
}

func filesTotaling(total int64) []media.SourceFile {
	half := total / 2
	return []media.SourceFile{
		{Path: "/in/a.wav", RelPath: "a.wav", Size: half},
		{Path: "/in/b.wav", RelPath: "b.wav", Size: total - half},
	}
}

func TestCheckSufficientWithHeadroom(t *testing.T) {
	report := stubChecker(uint64(100*gb), nil).Check(filesTotaling(50*gb), t.TempDir())
	if !report.Sufficient() {
		t.Fatalf("expected sufficient, got %+v", report)
	}
	if report.Required != 60*gb {
		t.Fatalf("required = %d, want %d", report.Required, 60*gb)
	}
	if report.Surplus != 40*gb {
		t.Fatalf("surplus = %d, want %d", report.Surplus, 40*gb)
	}
	if report.AsError() != nil {
		t.Fatalf("unexpected error: %v", report.AsError())
	}
}

func TestCheckMarginExceedsAvailability(t *testing.T) {
	report := stubChecker(uint64(50*gb), nil).Check(filesTotaling(50*gb), t.TempDir())
	if report.Sufficient() || report.Status != StatusInsufficient {
		t.Fatalf("expected insufficient, got %+v", report)
	}
	if report.Surplus != -10*gb {
		t.Fatalf("surplus = %d, want %d", report.Surplus, -10*gb)
	}
	if !errors.Is(report.AsError(), services.ErrCapacityInsufficient) {
		t.Fatalf("AsError = %v", report.AsError())
	}
}

func TestCheckUnknownIsNeverSufficient(t *testing.T) {
	report := stubChecker(0, errors.New("unsupported filesystem")).Check(filesTotaling(gb), t.TempDir())
	if report.Status != StatusUnknown || report.Sufficient() {
		t.Fatalf("expected unknown, got %+v", report)
	}
	if !errors.Is(report.AsError(), services.ErrCapacityUnknown) {
		t.Fatalf("AsError = %v", report.AsError())
	}
}

func TestCheckUsesNearestExistingAncestor(t *testing.T) {
	base := t.TempDir()
	var probed string
	c := NewChecker(0)
	c.statfs = func(path string) (uint64, error) {
		probed = path
		return uint64(10 * gb), nil
	}
	report := c.Check(filesTotaling(gb), filepath.Join(base, "not", "yet", "created"))
	if probed != base || report.Path != base {
		t.Fatalf("probed %q, want %q", probed, base)
	}
	if !report.Sufficient() {
		t.Fatalf("expected sufficient, got %+v", report)
	}
}

func TestCheckRealFilesystem(t *testing.T) {
	report := Check(filesTotaling(1), t.TempDir())
	if report.Status == StatusUnknown {
		t.Skipf("statfs unavailable: %v", report.Err)
	}
	if report.Available <= 0 {
		t.Fatalf("available = %d", report.Available)
	}
}

func TestRequiredRoundsUp(t *testing.T) {
	c := NewChecker(0.20)
	if got := c.Required(1); got != 2 {
		t.Fatalf("Required(1) = %d, want 2", got)
	}
	if got := c.Required(0); got != 0 {
		t.Fatalf("Required(0) = %d, want 0", got)
	}
}
