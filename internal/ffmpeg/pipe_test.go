package ffmpeg

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidwire/smear/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// catOrSkip locates cat(1), which stands in for ffmpeg as a stdin-to-stdout
// pipe process in tests that only exercise pipe lifecycle, not codecs.
func catOrSkip(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	return path
}

func TestSinkDrainsOutputBeforeExit(t *testing.T) {
	t.Parallel()

	cmd := exec.Command(catOrSkip(t))
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	// Wire the sink the way Start does.
	s := &Sink{cmd: cmd, stdin: stdin, log: testLogger()}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, s.readErr = io.Copy(&s.out, stdout)
	}()

	// Well past the kernel pipe buffer, so the tail is still in flight
	// when the input closes.
	payload := bytes.Repeat([]byte{0xA5}, 1<<20)
	require.NoError(t, s.WriteFrame(context.Background(), payload))

	out, err := s.Finalize(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, len(payload), "finalized blob lost part of the stream")
}

func TestDecoderDeadlineUnblocksPendingRead(t *testing.T) {
	t.Parallel()

	catOrSkip(t)

	// A wrapper that swallows the ffmpeg arguments and just echoes stdin.
	script := filepath.Join(t.TempDir(), "echo-decoder")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec cat\n"), 0o755))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The echo produces far fewer bytes than one 64x64 RGBA frame, so
	// Decode blocks on the frame read until the expiring context kills
	// the process and closes the pipe.
	d := NewPipeDecoder(script, 30, testLogger())
	cfg := media.DecoderConfig{Codec: "vp8", CodedWidth: 64, CodedHeight: 64}
	require.NoError(t, d.Configure(ctx, cfg))
	defer d.Close()

	done := make(chan error, 1)
	go func() {
		_, err := d.Decode(ctx, media.EncodedChunk{Payload: []byte{0x00, 0x01, 0x02}})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err, "a starved frame read must fail once the deadline kills the process")
	case <-time.After(5 * time.Second):
		t.Fatal("Decode stayed blocked past the context deadline")
	}
}
