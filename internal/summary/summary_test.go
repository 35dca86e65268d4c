package summary

import (
	"math"
	"testing"
	"time"

	"flacbatch/internal/media"
)

func TestAggregatorCountsAndBytes(t *testing.T) {
	agg := NewAggregator("run-1", "/music", "/music_converted", time.Unix(0, 0))
	agg.Add(media.Succeeded("b.wav", "/out/b.flac", 1000, 600, time.Second, "ok"))
	agg.Add(media.Failed("a.wav", media.ReasonExitCode, 500, time.Second, "ffmpeg error (code 1): bad"))
	agg.Add(media.Succeeded("c.wav", "/out/c.flac", 1000, 400, time.Second, "ok"))
	agg.AddStagingFailure(StagingFailure{Path: "/music/d.wav", RelPath: "d.wav", Message: "copy: permission denied", Bytes: 250})
	agg.SetStaged(2500)

	s := agg.Finalize(10 * time.Second)
	if s.TotalFiles != 4 || s.Successful != 2 || s.Failed != 1 || s.StagingFailed != 1 {
		t.Fatalf("counts = %+v", s)
	}
	if s.TotalInputBytes != 2750 {
		t.Fatalf("total input = %d, want 2750", s.TotalInputBytes)
	}
	if s.SuccessInputBytes != 2000 || s.OutputBytes != 1000 {
		t.Fatalf("success bytes = %d/%d", s.SuccessInputBytes, s.OutputBytes)
	}
	if got := s.CompressionRatio(); got != 0.5 {
		t.Fatalf("compression = %v, want 0.5", got)
	}
	if got := s.SuccessRate(); got != 0.5 {
		t.Fatalf("success rate = %v, want 0.5", got)
	}
	if got := s.Throughput(); math.Abs(got-275) > 1e-9 {
		t.Fatalf("throughput = %v, want 275", got)
	}
	if got := s.AverageSecondsPerFile(); got != 2.5 {
		t.Fatalf("avg = %v, want 2.5", got)
	}
	if !s.HasFailures() || !s.Staged || s.StagedBytes != 2500 {
		t.Fatalf("flags = %+v", s)
	}
	if s.Cancelled {
		t.Fatal("run was not cancelled")
	}
}

func TestFinalizeSortsFailures(t *testing.T) {
	agg := NewAggregator("r", "", "", time.Now())
	for _, rel := range []string{"z.wav", "m/b.wav", "a.wav"} {
		agg.Add(media.Failed(rel, media.ReasonTimeout, 1, 0, "timed out"))
	}
	s := agg.Finalize(time.Second)
	want := []string{"a.wav", "m/b.wav", "z.wav"}
	for i, f := range s.Failures {
		if f.RelPath != want[i] {
			t.Fatalf("failures = %+v", s.Failures)
		}
	}
}

func TestCancelledResultsFlagRun(t *testing.T) {
	agg := NewAggregator("r", "", "", time.Now())
	agg.Add(media.Failed("x.wav", media.ReasonCancelled, 1, 0, "cancelled"))
	if s := agg.Finalize(0); !s.Cancelled {
		t.Fatal("expected cancelled run")
	}
}

func TestEmptySummaryMetricsAreZero(t *testing.T) {
	s := NewAggregator("r", "", "", time.Now()).Finalize(0)
	if s.SuccessRate() != 0 || s.CompressionRatio() != 0 || s.Throughput() != 0 || s.AverageSecondsPerFile() != 0 {
		t.Fatalf("expected zero metrics: %+v", s)
	}
	if s.HasFailures() {
		t.Fatal("empty run has no failures")
	}
}
