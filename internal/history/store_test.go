package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flacbatch/internal/config"
	"flacbatch/internal/media"
	"flacbatch/internal/summary"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSummary(id string, started time.Time) summary.RunSummary {
	agg := summary.NewAggregator(id, "/music/album", "/music/album_converted", started)
	agg.Add(media.Succeeded("a.wav", "/music/album_converted/a.flac", 1000, 600, time.Second, "ok"))
	agg.Add(media.Failed("b.wav", media.ReasonTimeout, 500, 5*time.Minute, "conversion timed out (>5m0s)"))
	agg.AddStagingFailure(summary.StagingFailure{Path: "/music/album/c.wav", RelPath: "c.wav", Message: "copy: permission denied", Bytes: 10})
	agg.SetStaged(1500)
	return agg.Finalize(90 * time.Second)
}

func TestRecordAndListRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	if err := store.Record(ctx, sampleSummary("run-old", older)); err != nil {
		t.Fatalf("Record old: %v", err)
	}
	if err := store.Record(ctx, sampleSummary("run-new", newer)); err != nil {
		t.Fatalf("Record new: %v", err)
	}

	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-new" {
		t.Fatalf("runs = %+v", runs)
	}
	got := runs[0]
	if got.TotalFiles != 3 || got.Successful != 1 || got.Failed != 1 || got.StagingFailed != 1 {
		t.Fatalf("counts = %+v", got)
	}
	if got.Elapsed != 90*time.Second || !got.StartedAt.Equal(newer) || !got.Staged {
		t.Fatalf("metadata = %+v", got)
	}

	limited, err := store.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("List(1) = %v, %v", limited, err)
	}
}

func TestFailuresAreStoredByKind(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleSummary("run-1", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}

	failures, err := store.Failures(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %+v", failures)
	}
	if failures[0].Kind != KindConversion || failures[0].Reason != string(media.ReasonTimeout) {
		t.Fatalf("conversion failure = %+v", failures[0])
	}
	if failures[1].Kind != KindStaging || failures[1].RelPath != "c.wav" || failures[1].Reason != "" {
		t.Fatalf("staging failure = %+v", failures[1])
	}
}

func TestRecordReplacesExistingRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sum := sampleSummary("run-1", time.Now())
	if err := store.Record(ctx, sum); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, sum); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	failures, err := store.Failures(ctx, "run-1")
	if err != nil || len(failures) != 2 {
		t.Fatalf("failures after replace = %d, %v", len(failures), err)
	}
}

func TestGetByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc123", "abd456"} {
		if err := store.Record(ctx, sampleSummary(id, time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	run, err := store.Get(ctx, "abc")
	if err != nil || run.RunID != "abc123" {
		t.Fatalf("Get(abc) = %+v, %v", run, err)
	}
	if _, err := store.Get(ctx, "ab"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if _, err := store.Get(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(zzz) err = %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := OpenPath(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()
	second, err := OpenPath(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()
	if second.Path() != path {
		t.Fatalf("path = %q", second.Path())
	}
}

func TestRecordRejectsEmptyRunID(t *testing.T) {
	if err := openTestStore(t).Record(context.Background(), summary.RunSummary{}); err == nil {
		t.Fatal("expected error")
	}
}
