// Package source turns on-disk media into the per-source chunk arrays the
// timeline expander consumes. The concrete container is IVF carrying VP8 or
// VP9, which keeps key/delta detection a matter of reading one bitstream
// byte rather than running a parser.
package source

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/voidwire/smear/media"
)

const (
	ivfHeaderSize      = 32
	ivfFrameHeaderSize = 12
)

// ReadIVF parses an IVF stream into its chunk array and decoder config.
// Each frame becomes one EncodedChunk with its key/delta kind derived from
// the codec bitstream, timestamps rescaled to microseconds, and the payload
// copied out so chunks stay valid after the reader is gone.
func ReadIVF(r io.Reader) ([]media.EncodedChunk, media.DecoderConfig, error) {
	var cfg media.DecoderConfig

	header := make([]byte, ivfHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, cfg, fmt.Errorf("source: read IVF header: %w", err)
	}
	if string(header[0:4]) != "DKIF" {
		return nil, cfg, fmt.Errorf("source: not an IVF stream (signature %q)", header[0:4])
	}
	if hs := binary.LittleEndian.Uint16(header[6:8]); hs != ivfHeaderSize {
		return nil, cfg, fmt.Errorf("source: unsupported IVF header size %d", hs)
	}

	fourcc := string(header[8:12])
	switch fourcc {
	case "VP80":
		cfg.Codec = "vp8"
	case "VP90":
		cfg.Codec = "vp9"
	default:
		return nil, cfg, fmt.Errorf("source: unsupported codec fourcc %q", fourcc)
	}
	cfg.CodedWidth = uint32(binary.LittleEndian.Uint16(header[12:14]))
	cfg.CodedHeight = uint32(binary.LittleEndian.Uint16(header[14:16]))

	// IVF stores the frame interval as the rational scale/rate.
	rate := binary.LittleEndian.Uint32(header[16:20])
	scale := binary.LittleEndian.Uint32(header[20:24])
	if rate == 0 {
		return nil, cfg, fmt.Errorf("source: zero timebase rate")
	}
	frameMicros := uint64(scale) * 1_000_000 / uint64(rate)

	var chunks []media.EncodedChunk
	frameHeader := make([]byte, ivfFrameHeaderSize)
	for {
		if _, err := io.ReadFull(r, frameHeader); err != nil {
			if err == io.EOF {
				break
			}
			return nil, cfg, fmt.Errorf("source: read frame header: %w", err)
		}
		size := binary.LittleEndian.Uint32(frameHeader[0:4])
		pts := binary.LittleEndian.Uint64(frameHeader[4:12])

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, cfg, fmt.Errorf("source: read frame payload (%d bytes): %w", size, err)
		}

		kind := media.ChunkDelta
		if isKeyframe(cfg.Codec, payload) {
			kind = media.ChunkKey
		}
		chunks = append(chunks, media.EncodedChunk{
			Kind:            kind,
			TimestampMicros: pts * frameMicros,
			DurationMicros:  frameMicros,
			Payload:         payload,
		})
	}
	return chunks, cfg, nil
}

// isKeyframe inspects the first bitstream bytes of a VP8/VP9 frame.
func isKeyframe(codec string, payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	b := payload[0]
	switch codec {
	case "vp8":
		// VP8 frame tag: bit 0 of the first byte is the inverse key flag.
		return b&0x01 == 0
	case "vp9":
		// VP9 uncompressed header, profiles 0/1: frame marker (2 bits),
		// profile (2 bits), show_existing_frame, then frame_type where
		// 0 means key.
		if b>>6 != 0x02 {
			return false
		}
		return b&0x04 == 0
	default:
		return false
	}
}

// WriteIVFHeader emits the 32-byte IVF file header for cfg. frameCount may
// be zero when the total is not known up front; decoders read to EOF anyway.
func WriteIVFHeader(w io.Writer, cfg media.DecoderConfig, fps int, frameCount uint32) error {
	fourcc := "VP80"
	if cfg.Codec == "vp9" {
		fourcc = "VP90"
	}
	header := make([]byte, ivfHeaderSize)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[6:8], ivfHeaderSize)
	copy(header[8:12], fourcc)
	binary.LittleEndian.PutUint16(header[12:14], uint16(cfg.CodedWidth))
	binary.LittleEndian.PutUint16(header[14:16], uint16(cfg.CodedHeight))
	binary.LittleEndian.PutUint32(header[16:20], uint32(fps))
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], frameCount)
	_, err := w.Write(header)
	return err
}

// WriteIVFFrame emits one frame record: size, pts, payload.
func WriteIVFFrame(w io.Writer, pts uint64, payload []byte) error {
	header := make([]byte, ivfFrameHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(header[4:12], pts)
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
