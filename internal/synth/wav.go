package synth

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte PCM WAV header laid out for
// encoding/binary. Encoding always emits this exact shape; decoding accepts
// it plus any extra chunks between "fmt " and "data".
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // bytes of sample data
}

// EncodeWAV serializes a mono float32 buffer as 16-bit PCM WAV, clipping
// samples outside [-1, 1]. This is the container handed to the muxer as the
// audio input.
func EncodeWAV(b *PCMBuffer) ([]byte, error) {
	if len(b.Data) == 0 {
		return nil, fmt.Errorf("synth: cannot encode empty buffer")
	}
	if b.SampleRate <= 0 {
		return nil, fmt.Errorf("synth: sample rate must be positive, got %d", b.SampleRate)
	}

	dataSize := uint32(len(b.Data) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(b.Data)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("synth: write WAV header: %w", err)
	}

	pcm := make([]int16, len(b.Data))
	for i, s := range b.Data {
		switch {
		case s > 1:
			pcm[i] = 32767
		case s < -1:
			pcm[i] = -32768
		default:
			pcm[i] = int16(s * 32767)
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("synth: write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV parses 16-bit PCM WAV data into a mono float32 buffer, mixing
// multi-channel sources down by averaging. Chunks other than "fmt " and
// "data" (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (*PCMBuffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("synth: not a RIFF/WAVE resource")
	}

	var (
		channels   uint16
		bits       uint16
		format     uint16
		sampleRate uint32
		raw        []byte
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("synth: truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("synth: fmt chunk too short: %d bytes", size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
		case "data":
			raw = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if raw == nil {
		return nil, fmt.Errorf("synth: missing data chunk")
	}
	if format != 1 {
		return nil, fmt.Errorf("synth: unsupported audio format %d, want PCM", format)
	}
	if bits != 16 {
		return nil, fmt.Errorf("synth: unsupported bit depth %d, want 16", bits)
	}
	if channels == 0 {
		return nil, fmt.Errorf("synth: zero channel count")
	}

	frames := len(raw) / (2 * int(channels))
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < int(channels); c++ {
			s := int16(binary.LittleEndian.Uint16(raw[(i*int(channels)+c)*2:]))
			sum += float64(s) / 32768
		}
		out[i] = float32(sum / float64(channels))
	}
	return &PCMBuffer{SampleRate: int(sampleRate), Data: out}, nil
}
