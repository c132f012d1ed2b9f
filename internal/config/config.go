// Package config loads the render configuration file: output settings,
// timing, and the named segment presets the CLI builds timelines from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/voidwire/smear/internal/timeline"
	"github.com/voidwire/smear/media"
)

// Config is the fully processed application configuration.
type Config struct {
	Width          uint32
	Height         uint32
	FPS            int
	SampleRate     int
	Volume         float64
	Seed           int64
	Timeout        time.Duration
	FFmpegPath     string
	SourceDir      string
	OutputDir      string
	ContinuousPink bool
	Presets        []timeline.Preset
}

// rawConfig maps directly onto the JSON file; Load converts it into the
// processed Config.
type rawConfig struct {
	Width          uint32      `json:"width"`
	Height         uint32      `json:"height"`
	FPS            int         `json:"fps"`
	SampleRate     int         `json:"sampleRate"`
	Volume         *float64    `json:"volume"`
	Seed           int64       `json:"seed"`
	TimeoutSeconds int         `json:"timeoutSeconds"`
	FFmpegPath     string      `json:"ffmpegPath"`
	SourceDir      string      `json:"sourceDir"`
	OutputDir      string      `json:"outputDir"`
	ContinuousPink bool        `json:"continuousPink"`
	Presets        []rawPreset `json:"presets"`
}

type rawPreset struct {
	Name     string       `json:"name"`
	Segments []rawSegment `json:"segments"`
}

type rawSegment struct {
	Source string    `json:"source"`
	From   int       `json:"from"`
	To     int       `json:"to"`
	Repeat int       `json:"repeat"`
	Audio  *rawAudio `json:"audio"`
}

type rawAudio struct {
	Type      string   `json:"type"`  // "noise", "sine", "sample"
	Noise     string   `json:"noise"` // "white", "pink", "brown"
	Frequency float64  `json:"frequency"`
	URL       string   `json:"url"`
	Volume    *float64 `json:"volume"`
}

// Load reads and validates the configuration file at path, applying
// defaults for every omitted field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := &Config{
		Width:          raw.Width,
		Height:         raw.Height,
		FPS:            raw.FPS,
		SampleRate:     raw.SampleRate,
		Volume:         1.0,
		Seed:           raw.Seed,
		Timeout:        10 * time.Minute,
		FFmpegPath:     raw.FFmpegPath,
		SourceDir:      raw.SourceDir,
		OutputDir:      raw.OutputDir,
		ContinuousPink: raw.ContinuousPink,
	}
	if cfg.Width == 0 {
		cfg.Width = 1280
	}
	if cfg.Height == 0 {
		cfg.Height = 720
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if raw.Volume != nil {
		cfg.Volume = *raw.Volume
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return nil, fmt.Errorf("config: volume %g out of range [0, 1]", cfg.Volume)
	}
	if raw.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(raw.TimeoutSeconds) * time.Second
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = "sources"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}

	for _, rp := range raw.Presets {
		preset, err := rp.toPreset()
		if err != nil {
			return nil, err
		}
		cfg.Presets = append(cfg.Presets, preset)
	}
	return cfg, nil
}

// Preset looks up a named preset.
func (c *Config) Preset(name string) (timeline.Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return timeline.Preset{}, false
}

func (rp rawPreset) toPreset() (timeline.Preset, error) {
	if rp.Name == "" {
		return timeline.Preset{}, fmt.Errorf("config: preset with empty name")
	}
	segments := make([]media.Segment, 0, len(rp.Segments))
	for i, rs := range rp.Segments {
		spec, err := rs.audioSpec()
		if err != nil {
			return timeline.Preset{}, fmt.Errorf("config: preset %q segment %d: %w", rp.Name, i, err)
		}
		repeat := rs.Repeat
		if repeat == 0 {
			repeat = 1
		}
		segments = append(segments, media.Segment{
			SourceID: rs.Source,
			From:     rs.From,
			To:       rs.To,
			Repeat:   repeat,
			Audio:    spec,
		})
	}
	return timeline.Preset{Name: rp.Name, Segments: segments}, nil
}

func (rs rawSegment) audioSpec() (*media.AudioSpec, error) {
	if rs.Audio == nil {
		return nil, nil
	}
	var spec *media.AudioSpec
	switch strings.ToLower(rs.Audio.Type) {
	case "noise":
		color, err := noiseColor(rs.Audio.Noise)
		if err != nil {
			return nil, err
		}
		spec = media.NoiseSpec(color)
	case "sine":
		if rs.Audio.Frequency <= 0 {
			return nil, fmt.Errorf("sine audio needs a positive frequency, got %g", rs.Audio.Frequency)
		}
		spec = media.SineSpec(rs.Audio.Frequency)
	case "sample":
		if rs.Audio.URL == "" {
			return nil, fmt.Errorf("sample audio needs a url")
		}
		spec = media.SampleSpec(rs.Audio.URL)
	default:
		return nil, fmt.Errorf("unknown audio type %q", rs.Audio.Type)
	}
	spec.Volume = rs.Audio.Volume
	return spec, nil
}

func noiseColor(s string) (media.NoiseColor, error) {
	switch strings.ToLower(s) {
	case "", "white":
		return media.NoiseWhite, nil
	case "pink":
		return media.NoisePink, nil
	case "brown":
		return media.NoiseBrown, nil
	default:
		return 0, fmt.Errorf("unknown noise color %q", s)
	}
}
