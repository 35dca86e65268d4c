package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"flacbatch/internal/fileutil"
	"flacbatch/internal/logging"
	"flacbatch/internal/media"
	"flacbatch/internal/progress"
	"flacbatch/internal/scan"
	"flacbatch/internal/services"
	"flacbatch/internal/testsupport"
)

func buildTree(t *testing.T, rels ...string) (string, []media.SourceFile) {
	t.Helper()
	root := t.TempDir()
	for i, rel := range rels {
		testsupport.WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), int64(100*(i+1)))
	}
	files, err := scan.Scan(root, ".wav")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return root, files
}

func TestStageCopiesPreservingLayout(t *testing.T) {
	root, files := buildTree(t, "a.wav", "sub/b.wav", "sub/deep/c.wav")
	stagingRoot := filepath.Join(t.TempDir(), "run-1")
	sink := progress.NewSink(16)

	stager := NewStager(0, logging.NewNop(), sink, nil)
	result, err := stager.Stage(context.Background(), files, root, stagingRoot)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(result.Entries) != 3 || len(result.Failures) != 0 {
		t.Fatalf("entries=%d failures=%d", len(result.Entries), len(result.Failures))
	}
	if result.Bytes != media.TotalSize(files) {
		t.Fatalf("bytes = %d, want %d", result.Bytes, media.TotalSize(files))
	}

	for i, staged := range result.Files() {
		if staged.RelPath != files[i].RelPath {
			t.Fatalf("rel path %q != original %q", staged.RelPath, files[i].RelPath)
		}
		want := filepath.Join(stagingRoot, files[i].RelPath)
		if staged.Path != want {
			t.Fatalf("staged path = %q, want %q", staged.Path, want)
		}
		info, err := os.Stat(staged.Path)
		if err != nil || info.Size() != files[i].Size {
			t.Fatalf("staged copy %s: %v", staged.Path, err)
		}
	}

	sink.Close()
	var events int
	for ev := range sink.Events() {
		events++
		if ev.Stage != progress.StageStaging || ev.Total != 3 {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if events != 3 {
		t.Fatalf("events = %d, want 3", events)
	}
}

func TestStagePartialFailureExcludesFiles(t *testing.T) {
	var rels []string
	for i := 0; i < 10; i++ {
		rels = append(rels, fmt.Sprintf("disc/track%02d.wav", i))
	}
	root, files := buildTree(t, rels...)

	stager := NewStager(4, logging.NewNop(), nil, nil)
	stager.copyFile = func(src, dst string) (int64, error) {
		base := filepath.Base(src)
		if base == "track01.wav" || base == "track04.wav" || base == "track07.wav" {
			return 0, errors.New("input/output error")
		}
		return fileutil.CopyFilePreserve(src, dst)
	}

	result, err := stager.Stage(context.Background(), files, root, t.TempDir())
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(result.Entries) != 7 {
		t.Fatalf("entries = %d, want 7", len(result.Entries))
	}
	if len(result.Failures) != 3 {
		t.Fatalf("failures = %d, want 3", len(result.Failures))
	}
	for _, f := range result.Failures {
		if !strings.Contains(f.Message, "input/output error") || f.Path == "" {
			t.Fatalf("unexpected failure %+v", f)
		}
	}
}

func TestStageTotalFailureIsFatal(t *testing.T) {
	root, files := buildTree(t, "a.wav", "b.wav")
	stager := NewStager(2, logging.NewNop(), nil, nil)
	stager.copyFile = func(string, string) (int64, error) { return 0, errors.New("read-only") }

	result, err := stager.Stage(context.Background(), files, root, t.TempDir())
	if !errors.Is(err, services.ErrStagingTotalFailure) {
		t.Fatalf("err = %v, want ErrStagingTotalFailure", err)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(result.Failures))
	}
}

func TestStageEmptyInputIsNoop(t *testing.T) {
	stagingRoot := filepath.Join(t.TempDir(), "never")
	result, err := NewStager(0, nil, nil, nil).Stage(context.Background(), nil, t.TempDir(), stagingRoot)
	if err != nil || len(result.Entries) != 0 {
		t.Fatalf("Stage(nil) = %+v, %v", result, err)
	}
	if _, err := os.Stat(stagingRoot); !os.IsNotExist(err) {
		t.Fatal("staging root should not be created for empty input")
	}
}

func TestStageCancellationSkipsRemainingFiles(t *testing.T) {
	var rels []string
	for i := 0; i < 6; i++ {
		rels = append(rels, fmt.Sprintf("f%d.wav", i))
	}
	root, files := buildTree(t, rels...)

	var cancelled atomic.Bool
	var once sync.Once
	stager := NewStager(1, logging.NewNop(), nil, cancelled.Load)
	stager.copyFile = func(src, dst string) (int64, error) {
		once.Do(func() { cancelled.Store(true) })
		return fileutil.CopyFilePreserve(src, dst)
	}

	result, err := stager.Stage(context.Background(), files, root, t.TempDir())
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(result.Entries))
	}
	if len(result.Entries)+len(result.Failures) != len(files) {
		t.Fatalf("every file must be accounted for: %d + %d != %d", len(result.Entries), len(result.Failures), len(files))
	}
	for _, f := range result.Failures {
		if f.Message != CancelledMessage {
			t.Fatalf("failure message = %q, want %q", f.Message, CancelledMessage)
		}
	}
}

func TestRelativePathMatchesScanForRootLevelFiles(t *testing.T) {
	root, files := buildTree(t, "top.wav", "nested/inner.wav")
	for _, f := range files {
		rel, err := RelativePath(root, f.Path)
		if err != nil {
			t.Fatalf("RelativePath(%s): %v", f.Path, err)
		}
		if rel != f.RelPath {
			t.Fatalf("RelativePath = %q, scan rel = %q", rel, f.RelPath)
		}
	}
	if rel, _ := RelativePath(root, filepath.Join(root, "top.wav")); filepath.Dir(rel) != "." {
		t.Fatalf("root-level file should have empty parent, got %q", rel)
	}
	if _, err := RelativePath(root, filepath.Join(filepath.Dir(root), "elsewhere.wav")); err == nil {
		t.Fatal("expected error for path outside root")
	}
}
