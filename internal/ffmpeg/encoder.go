package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/voidwire/smear/internal/capture"
	"github.com/voidwire/smear/media"
)

// CaptureEncoder opens sinks that compress raw RGBA frames into an IVF
// video-only stream through a long-lived ffmpeg process. It implements the
// capture scheduler's Encoder contract.
type CaptureEncoder struct {
	Binary string
	Codec  string // encoder name, default "libvpx"
	Log    *slog.Logger
}

// Start launches the encode process at the given raster size and frame rate
// and returns the sink the capture scheduler writes into.
func (e *CaptureEncoder) Start(ctx context.Context, settings media.Settings, fps int) (capture.Sink, error) {
	binary := e.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	codec := e.Codec
	if codec == "" {
		codec = "libvpx"
	}
	log := e.Log
	if log == nil {
		log = slog.Default()
	}

	size := strconv.Itoa(int(settings.Width)) + "x" + strconv.Itoa(int(settings.Height))
	args := append(skeleton(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", size,
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", codec,
		"-b:v", "2M",
		"-f", "ivf",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, binary, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: encoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start encoder: %w", err)
	}

	s := &Sink{cmd: cmd, stdin: stdin, log: log.With("component", "encoder")}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, s.readErr = io.Copy(&s.out, stdout)
	}()
	return s, nil
}

// Sink accumulates the compressed stream produced from the frames written
// into it. It implements the capture scheduler's sink contract.
type Sink struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	log     *slog.Logger
	out     bytes.Buffer
	readErr error
	wg      sync.WaitGroup
}

// WriteFrame submits one raster in the size negotiated at Start.
func (s *Sink) WriteFrame(ctx context.Context, pixels []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.stdin.Write(pixels); err != nil {
		return fmt.Errorf("ffmpeg: write frame: %w", err)
	}
	return nil
}

// Finalize closes the input, waits for the encoder to drain, and returns
// the finished video-only blob. The output copy must finish before Wait:
// Wait closes the stdout pipe, which would cut off the tail of the stream.
func (s *Sink) Finalize(ctx context.Context) ([]byte, error) {
	s.stdin.Close()
	s.wg.Wait()
	if err := s.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: encoder exit: %w", err)
	}
	if s.readErr != nil {
		return nil, fmt.Errorf("ffmpeg: collect encoder output: %w", s.readErr)
	}
	s.log.Debug("encode finished", "bytes", s.out.Len())
	return s.out.Bytes(), nil
}
