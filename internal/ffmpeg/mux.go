package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// MuxError reports that every mux attempt failed. It is fatal: the caller
// decides whether a video-only deliverable is acceptable, the muxer never
// substitutes one silently.
type MuxError struct {
	Attempts int
	Err      error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("ffmpeg: mux failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MuxError) Unwrap() error {
	return e.Err
}

// Muxer combines a video-only blob and an audio blob into one container.
type Muxer interface {
	Mux(ctx context.Context, video, audio []byte) ([]byte, error)
}

// CommandMuxer muxes through ffmpeg with explicit stream selectors. Default
// stream auto-selection is the dominant real-world failure mode here
// (ambiguous or absent mapping), so every invocation maps exactly one video
// stream from the first input and one audio stream from the second.
type CommandMuxer struct {
	runner Runner
	log    *slog.Logger

	// OnFallback is invoked when the strict mapping fails and the looser
	// retry mapping is attempted.
	OnFallback func()
}

// NewCommandMuxer creates a CommandMuxer over the given runner.
func NewCommandMuxer(runner Runner, log *slog.Logger) *CommandMuxer {
	if log == nil {
		log = slog.Default()
	}
	return &CommandMuxer{runner: runner, log: log.With("component", "mux")}
}

// Mux writes both blobs to temp files and runs ffmpeg with the strict
// per-stream mapping first (-map 0:v:0 -map 1:a:0, stream copy). If that
// fails it retries once with the looser per-type mapping and an audio
// re-encode, which recovers inputs whose first audio stream is not at index
// zero or whose codec the container rejects. Both failing is a MuxError.
func (m *CommandMuxer) Mux(ctx context.Context, video, audio []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "smear-mux-*")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: mux workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	videoPath := filepath.Join(dir, "video.ivf")
	audioPath := filepath.Join(dir, "audio.wav")
	outPath := filepath.Join(dir, "out.webm")
	if err := os.WriteFile(videoPath, video, 0o644); err != nil {
		return nil, fmt.Errorf("ffmpeg: stage video input: %w", err)
	}
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("ffmpeg: stage audio input: %w", err)
	}

	attempts := [][]string{
		muxArgs(videoPath, audioPath, outPath, "0:v:0", "1:a:0", false),
		muxArgs(videoPath, audioPath, outPath, "0:v", "1:a", true),
	}

	var lastErr error
	for i, args := range attempts {
		if err := m.runner.Run(ctx, nil, args...); err != nil {
			lastErr = err
			m.log.Warn("mux attempt failed", "attempt", i+1, "error", err)
			if ctx.Err() != nil {
				break
			}
			if i == 0 && m.OnFallback != nil {
				m.OnFallback()
			}
			continue
		}
		out, err := os.ReadFile(outPath)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: read mux output: %w", err)
		}
		return out, nil
	}
	return nil, &MuxError{Attempts: len(attempts), Err: lastErr}
}

func muxArgs(videoPath, audioPath, outPath, videoMap, audioMap string, reencodeAudio bool) []string {
	args := append(skeleton(),
		"-i", videoPath,
		"-i", audioPath,
		"-map", videoMap,
		"-map", audioMap,
		"-c:v", "copy",
	)
	if reencodeAudio {
		args = append(args, "-c:a", "libopus", "-shortest")
	} else {
		args = append(args, "-c:a", "libopus")
	}
	return append(args, outPath)
}
