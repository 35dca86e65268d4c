package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"flacbatch/internal/media"
)

func stubCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		out := ""
		if len(args) > 0 {
			out = args[len(args)-1]
		}
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode),
			fmt.Sprintf("FFMPEG_HELPER_OUTPUT=%s", out),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func newSpec(t *testing.T) JobSpec {
	t.Helper()
	dir := t.TempDir()
	return JobSpec{
		SourcePath:       filepath.Join(dir, "in", "song.wav"),
		DestRoot:         filepath.Join(dir, "out"),
		RelPath:          "song.wav",
		OutputPath:       filepath.Join(dir, "song.flac"),
		InputBytes:       1000,
		Threads:          4,
		CompressionLevel: 5,
	}
}

func TestTranscodeSuccessBuildsArgsAndMessage(t *testing.T) {
	var captured []string
	stubCommand(t, "success", &captured)
	spec := newSpec(t)

	res := NewFFmpeg("/opt/ffmpeg", time.Minute).Transcode(context.Background(), spec)
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	want := []string{"/opt/ffmpeg", "-nostdin", "-i", spec.SourcePath, "-threads", "4", "-c:a", "flac",
		"-compression_level", "5", "-y", "-v", "error", spec.OutputPath}
	if strings.Join(captured, " ") != strings.Join(want, " ") {
		t.Fatalf("args = %v\nwant %v", captured, want)
	}
	if res.OutputBytes != 400 {
		t.Fatalf("output bytes = %d, want 400", res.OutputBytes)
	}
	if !strings.HasPrefix(res.Message, "Converted to song.flac (60.0% smaller, ") {
		t.Fatalf("message = %q", res.Message)
	}
	if res.OutputPath != spec.OutputPath || res.RelPath != "song.wav" || res.InputBytes != 1000 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTranscodeNonZeroExitCapturesStderr(t *testing.T) {
	stubCommand(t, "failure", nil)
	res := NewFFmpeg("", time.Minute).Transcode(context.Background(), newSpec(t))
	if res.OK() || res.Reason != media.ReasonExitCode {
		t.Fatalf("expected exit code failure, got %+v", res)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.HasPrefix(res.Message, "ffmpeg error (code 3): ") || !strings.Contains(res.Message, "Invalid data found") {
		t.Fatalf("message = %q", res.Message)
	}
	if res.OutputBytes != 0 {
		t.Fatalf("failure carries output bytes: %+v", res)
	}
}

func TestTranscodeMissingOutputIsFailure(t *testing.T) {
	stubCommand(t, "nooutput", nil)
	res := NewFFmpeg("", time.Minute).Transcode(context.Background(), newSpec(t))
	if res.OK() || res.Reason != media.ReasonOutputMissing {
		t.Fatalf("expected output-missing failure, got %+v", res)
	}
}

func TestTranscodeTimeoutIsDistinctFailure(t *testing.T) {
	stubCommand(t, "hang", nil)
	res := NewFFmpeg("", 200*time.Millisecond).Transcode(context.Background(), newSpec(t))
	if res.OK() {
		t.Fatal("timeout must never be a success")
	}
	if res.Reason != media.ReasonTimeout {
		t.Fatalf("reason = %q, want timeout", res.Reason)
	}
	if res.Message != "conversion timed out (>200ms)" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestTranscodeLaunchFailure(t *testing.T) {
	res := NewFFmpeg(filepath.Join(t.TempDir(), "missing-ffmpeg"), time.Minute).Transcode(context.Background(), newSpec(t))
	if res.OK() || res.Reason != media.ReasonUnexpected {
		t.Fatalf("expected unexpected failure, got %+v", res)
	}
}

func TestTrimDiagnostics(t *testing.T) {
	if got := TrimDiagnostics("  \n"); got != "no diagnostic output" {
		t.Fatalf("empty = %q", got)
	}
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	got := TrimDiagnostics(strings.Join(lines, "\n"))
	if strings.Contains(got, "line 9\n") || !strings.HasPrefix(got, "line 10") || !strings.HasSuffix(got, "line 29") {
		t.Fatalf("trimmed = %q", got)
	}
	long := strings.Repeat("x", 5000)
	if got := TrimDiagnostics(long); len(got) != maxStderrChars+3 {
		t.Fatalf("long trimmed len = %d", len(got))
	}
}

func TestTrimDiagnosticsKeepsRunesWhole(t *testing.T) {
	// Three-byte runes with an odd prefix so the cut lands mid-rune.
	stderr := "x" + strings.Repeat("日", 1000)
	got := TrimDiagnostics(stderr)
	if !utf8.ValidString(got) {
		t.Fatalf("trimmed output is not valid UTF-8: %q", got[:12])
	}
	if !strings.HasPrefix(got, "...日") {
		t.Fatalf("trimmed prefix = %q", got[:6])
	}
	if len(got) > maxStderrChars+3 {
		t.Fatalf("trimmed len = %d, want <= %d", len(got), maxStderrChars+3)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	output := os.Getenv("FFMPEG_HELPER_OUTPUT")
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		if err := os.WriteFile(output, make([]byte, 400), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "[wav @ 0x1] invalid RIFF header")
		fmt.Fprintln(os.Stderr, "song.wav: Invalid data found when processing input")
		os.Exit(3)
	case "nooutput":
		os.Exit(0)
	case "hang":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	default:
		os.Exit(2)
	}
}
