package media

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOutputRelPath(t *testing.T) {
	cases := map[string]string{
		"a.wav":             "a.flac",
		"sub/b.WAV":         "sub/b.flac",
		"x/y/track.1.wav":   "x/y/track.1.flac",
		"no_extension_file": "no_extension_file.flac",
	}
	for rel, want := range cases {
		f := SourceFile{RelPath: filepath.FromSlash(rel)}
		if got := f.OutputRelPath(".flac"); got != filepath.FromSlash(want) {
			t.Fatalf("OutputRelPath(%q) = %q, want %q", rel, got, want)
		}
	}
}

func TestWithPathKeepsRelPath(t *testing.T) {
	f := SourceFile{Path: "/music/a.wav", Size: 10, RelPath: "a.wav"}
	staged := f.WithPath("/cache/run/a.wav")
	if staged.RelPath != "a.wav" || staged.Size != 10 || staged.Path != "/cache/run/a.wav" {
		t.Fatalf("unexpected staged file %+v", staged)
	}
	if f.Path != "/music/a.wav" {
		t.Fatalf("original mutated: %+v", f)
	}
}

func TestJobResultVariants(t *testing.T) {
	ok := Succeeded("a.wav", "/out/a.flac", 1000, 400, time.Second, "done")
	if !ok.OK() {
		t.Fatal("expected success")
	}
	if got := ok.CompressionPercent(); got != 60 {
		t.Fatalf("compression = %v, want 60", got)
	}

	failed := Failed("b.wav", ReasonTimeout, 500, time.Second, "timed out")
	if failed.OK() {
		t.Fatal("expected failure")
	}
	if failed.OutputBytes != 0 || failed.CompressionPercent() != 0 {
		t.Fatalf("failure must not carry output bytes: %+v", failed)
	}

	empty := Succeeded("c.wav", "/out/c.flac", 0, 0, 0, "")
	if empty.CompressionPercent() != 0 {
		t.Fatal("zero input should yield zero compression")
	}
}

func TestTotalSize(t *testing.T) {
	files := []SourceFile{{Size: 3}, {Size: 4}}
	if got := TotalSize(files); got != 7 {
		t.Fatalf("TotalSize = %d, want 7", got)
	}
}
