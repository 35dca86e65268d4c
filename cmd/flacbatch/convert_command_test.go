package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flacbatch/internal/services"
	"flacbatch/internal/testsupport"
)

func TestConvertStagedRunWritesOutputsAndHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegOK)

	out, _, err := runCLI(t, []string{"convert", env.inputDir, "--yes", "--stage"}, env.configPath, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "2 total, 2 converted, 0 failed, 0 not staged")

	for _, rel := range []string{"01 - intro.flac", filepath.Join("disc2", "02 - outro.flac")} {
		if _, err := os.Stat(filepath.Join(env.outputDir(), rel)); err != nil {
			t.Fatalf("missing output %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.outputDir(), "cover.flac")); !os.IsNotExist(err) {
		t.Fatalf("non-matching file was converted: %v", err)
	}
	logs, _ := filepath.Glob(filepath.Join(env.outputDir(), "flacbatch_*.log"))
	if len(logs) != 1 {
		t.Fatalf("run logs = %v, want one", logs)
	}
	entries, err := os.ReadDir(env.stagingDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging not cleaned: %v", entries)
	}

	out, _, err = runCLI(t, []string{"--json", "history", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []struct {
		RunID      string `json:"run_id"`
		Successful int    `json:"successful"`
		Staged     bool   `json:"staged"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Successful != 2 || !runs[0].Staged {
		t.Fatalf("history = %+v", runs)
	}

	out, _, err = runCLI(t, []string{"history", "show", runs[0].RunID[:8]}, env.configPath, "")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, runs[0].RunID)
}

func TestConvertJSONReport(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegOK)

	out, _, err := runCLI(t, []string{"--json", "convert", env.inputDir, "--yes", "--output", filepath.Join(env.baseDir, "flac")}, env.configPath, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report["successful"] != float64(2) || report["total_files"] != float64(2) {
		t.Fatalf("report = %v", report)
	}
	if report["output_dir"] != filepath.Join(env.baseDir, "flac") {
		t.Fatalf("output_dir = %v", report["output_dir"])
	}
}

func TestConvertFailuresExitWithCodeTwo(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegFail)

	out, _, err := runCLI(t, []string{"convert", env.inputDir, "--yes"}, env.configPath, "")
	if !errors.Is(err, errRunHadFailures) {
		t.Fatalf("err = %v, want errRunHadFailures", err)
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	requireContains(t, out, "Failed conversions")
	requireContains(t, out, "ffmpeg error (code 1)")
}

func TestConvertDeclinedAtPrompt(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegOK)

	out, stderr, err := runCLI(t, []string{"convert", env.inputDir}, env.configPath, "n\n")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "2 (96 KiB)")
	requireContains(t, stderr, "Proceed? (y/N)")
	requireContains(t, stderr, "Conversion cancelled by user")
	if _, err := os.Stat(env.outputDir()); !os.IsNotExist(err) {
		t.Fatalf("output directory created after decline: %v", err)
	}
}

func TestConvertAcceptedAtPrompt(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegOK)

	out, _, err := runCLI(t, []string{"convert", env.inputDir, "--workers", "1"}, env.configPath, "yes\n")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "2 converted")
}

func TestConvertWithoutFLACEncoderFails(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegNoFLAC)

	_, _, err := runCLI(t, []string{"convert", env.inputDir, "--yes"}, env.configPath, "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if !strings.Contains(err.Error(), "no FLAC encoder") {
		t.Fatalf("err = %v", err)
	}
}

func TestConvertEmptyDirectory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FFmpegOK)
	empty := filepath.Join(env.baseDir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, []string{"convert", empty, "--yes"}, env.configPath, "")
	if !errors.Is(err, services.ErrNoFiles) {
		t.Fatalf("err = %v, want ErrNoFiles", err)
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
