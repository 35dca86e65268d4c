package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// errRunHadFailures signals a completed run with per-file failures. The
// summary has already been printed, so main only sets the exit status.
var errRunHadFailures = errors.New("run completed with failures")

func main() {
	// A .env next to the invocation may set FLACBATCH_FFMPEG.
	_ = godotenv.Load()
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRunHadFailures):
		return 2
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}
