package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flacbatch/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	stagingDir string
	logDir     string
	inputDir   string
}

func setupCLITestEnv(t *testing.T, ffmpegMode string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("FLACBATCH_FFMPEG", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		stagingDir: filepath.Join(base, "staging"),
		logDir:     filepath.Join(base, "logs"),
		inputDir:   filepath.Join(base, "music", "album"),
	}
	ffmpeg := testsupport.WriteFakeFFmpeg(t, filepath.Join(base, "bin"), ffmpegMode)
	writeTestConfig(t, env.configPath, env.stagingDir, env.logDir, ffmpeg)

	testsupport.WriteFile(t, filepath.Join(env.inputDir, "01 - intro.wav"), 64*1024)
	testsupport.WriteFile(t, filepath.Join(env.inputDir, "disc2", "02 - outro.WAV"), 32*1024)
	testsupport.WriteFile(t, filepath.Join(env.inputDir, "cover.jpg"), 1024)
	return env
}

func writeTestConfig(t *testing.T, path, stagingDir, logDir, ffmpeg string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
log_dir = %q

[conversion]
ffmpeg_binary = %q
workers = 2
compression_level = 5
timeout_seconds = 30

[staging]
enabled = false

[logging]
level = "error"
run_log_file = true
`, stagingDir, logDir, ffmpeg)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) outputDir() string {
	return e.inputDir + "_converted"
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
