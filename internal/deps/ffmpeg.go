package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// probeTimeout bounds each ffmpeg probe invocation.
const probeTimeout = 10 * time.Second

// CheckFFmpegFLAC confirms binary runs and lists a FLAC encoder. The first
// line of -version output is reported as Version.
func CheckFFmpegFLAC(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	status := Status{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Transcodes source audio to FLAC",
	}
	if resolved, err := exec.LookPath(binary); err == nil {
		status.Path = resolved
	} else {
		status.Detail = fmt.Sprintf("binary %q not found", binary)
		return status
	}

	versionOut, err := probe(ctx, binary, "-version")
	if err != nil {
		status.Detail = fmt.Sprintf("ffmpeg -version failed: %v", err)
		return status
	}
	status.Version = firstLine(versionOut)

	encoders, err := probe(ctx, binary, "-encoders")
	if err != nil {
		status.Detail = fmt.Sprintf("ffmpeg -encoders failed: %v", err)
		return status
	}
	if !hasFLACEncoder(encoders) {
		status.Detail = "ffmpeg build has no FLAC encoder"
		return status
	}
	status.Available = true
	return status
}

func probe(ctx context.Context, binary string, args ...string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := commandContext(probeCtx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if probeCtx.Err() != nil {
			return "", fmt.Errorf("timed out after %s", probeTimeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, firstLine(msg))
		}
		return "", err
	}
	return stdout.String(), nil
}

func hasFLACEncoder(listing string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "flac" {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
