// Package ffmpeg builds and executes ffmpeg commands with a shared argument
// skeleton and unified retry logic. It hosts the three external
// collaborators the render pipeline shells out for: the stateful chunk
// decoder, the capture encoder, and the audio/video muxer.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultBinary is used when no explicit ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// Runner executes one ffmpeg invocation to completion. The mux path runs
// through this interface so its retry behavior is testable without the
// binary installed.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, args ...string) error
}

// ExecRunner runs ffmpeg via os/exec, capturing stderr for error reports.
type ExecRunner struct {
	Binary string
	Log    *slog.Logger
}

// NewExecRunner returns an ExecRunner for the given binary path, defaulting
// to DefaultBinary.
func NewExecRunner(binary string, log *slog.Logger) *ExecRunner {
	if binary == "" {
		binary = DefaultBinary
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{Binary: binary, Log: log.With("component", "ffmpeg")}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, stdin io.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.Log.Debug("exec", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", r.Binary, args[0], err, lastLine(stderr.String()))
	}
	return nil
}

// skeleton is the argument prefix shared by every invocation: quiet output,
// overwrite without prompting.
func skeleton() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-y"}
}

// lastLine trims ffmpeg's stderr down to its final non-empty line, which is
// where it puts the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
