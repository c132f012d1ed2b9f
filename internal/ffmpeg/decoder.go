package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/voidwire/smear/internal/source"
	"github.com/voidwire/smear/media"
)

// PipeDecoder decodes chunks through a long-lived ffmpeg process: IVF-framed
// chunks go in over stdin, raw RGBA rasters come back over stdout. The
// process keeps its reference-frame state across calls, so delta chunks fed
// out of their original order decode against whatever picture came before
// them. That mismatch is the corruption artifact, not a defect.
type PipeDecoder struct {
	binary string
	fps    int
	log    *slog.Logger

	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	frameSize int
	cfg       media.DecoderConfig
	pts       uint64
}

// NewPipeDecoder creates a decoder that shells out to the given ffmpeg
// binary. fps only affects the timestamps written into the intermediate IVF
// framing, not decode behavior.
func NewPipeDecoder(binary string, fps int, log *slog.Logger) *PipeDecoder {
	if binary == "" {
		binary = DefaultBinary
	}
	if log == nil {
		log = slog.Default()
	}
	return &PipeDecoder{binary: binary, fps: fps, log: log.With("component", "decoder")}
}

// Configure starts the decode process for cfg and writes the stream header.
// It must be called before Decode and may not be called twice. The process
// is bound to ctx: cancellation or deadline expiry kills it, which closes
// the pipes and unblocks any Decode waiting on a frame the decoder is
// holding back.
func (d *PipeDecoder) Configure(ctx context.Context, cfg media.DecoderConfig) error {
	if d.cmd != nil {
		return fmt.Errorf("ffmpeg: decoder already configured")
	}
	if cfg.CodedWidth == 0 || cfg.CodedHeight == 0 {
		return fmt.Errorf("ffmpeg: decoder config has zero dimensions")
	}

	ctx, cancel := context.WithCancel(ctx)
	args := append(skeleton(),
		"-probesize", "64",
		"-analyzeduration", "0",
		"-f", "ivf",
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, d.binary, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg: decoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg: decoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg: start decoder: %w", err)
	}

	if err := source.WriteIVFHeader(stdin, cfg, d.fps, 0); err != nil {
		cancel()
		cmd.Wait()
		return fmt.Errorf("ffmpeg: write decoder header: %w", err)
	}

	d.cmd = cmd
	d.cancel = cancel
	d.stdin = stdin
	d.stdout = bufio.NewReaderSize(stdout, 1<<20)
	d.frameSize = int(cfg.CodedWidth) * int(cfg.CodedHeight) * 4
	d.cfg = cfg
	d.log.Debug("decoder started", "codec", cfg.Codec,
		"size", strconv.Itoa(int(cfg.CodedWidth))+"x"+strconv.Itoa(int(cfg.CodedHeight)))
	return nil
}

// Decode submits one chunk and blocks for the corresponding raster frame.
func (d *PipeDecoder) Decode(ctx context.Context, chunk media.EncodedChunk) (*media.RasterFrame, error) {
	if d.cmd == nil {
		return nil, fmt.Errorf("ffmpeg: decoder not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := source.WriteIVFFrame(d.stdin, d.pts, chunk.Payload); err != nil {
		return nil, fmt.Errorf("ffmpeg: submit chunk: %w", err)
	}
	d.pts++

	pixels := make([]byte, d.frameSize)
	if _, err := io.ReadFull(d.stdout, pixels); err != nil {
		return nil, fmt.Errorf("ffmpeg: read decoded frame: %w", err)
	}
	return &media.RasterFrame{
		Width:  int(d.cfg.CodedWidth),
		Height: int(d.cfg.CodedHeight),
		Pixels: pixels,
	}, nil
}

// Close shuts the process down. Safe to call before Configure.
func (d *PipeDecoder) Close() error {
	if d.cmd == nil {
		return nil
	}
	d.stdin.Close()
	err := d.cmd.Wait()
	d.cancel()
	d.cmd = nil
	return err
}
