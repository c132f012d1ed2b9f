package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voidwire/smear/internal/capture"
	"github.com/voidwire/smear/internal/config"
	"github.com/voidwire/smear/internal/ffmpeg"
	"github.com/voidwire/smear/internal/metrics"
	"github.com/voidwire/smear/internal/render"
	"github.com/voidwire/smear/internal/source"
	"github.com/voidwire/smear/internal/store"
	"github.com/voidwire/smear/internal/synth"
	"github.com/voidwire/smear/internal/timeline"
	"github.com/voidwire/smear/media"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var (
		configPath  = flag.String("config", "smear.json", "path to the configuration file")
		presetName  = flag.String("preset", "", "named preset to render (default: first configured preset)")
		hybridList  = flag.String("hybrid", "", "comma-separated preset names to merge into a one-off hybrid")
		sourceList  = flag.String("sources", "", "comma-separated source IDs (default: every .ivf in the source dir)")
		metricsAddr = flag.String("metrics", "", "listen address for /metrics and /api/renders (disabled when empty)")
		seedFlag    = flag.Int64("seed", 0, "override the configured RNG seed")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seedFlag != 0 {
		cfg.Seed = *seedFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("smear starting", "version", version,
		"source_dir", cfg.SourceDir, "output_dir", cfg.OutputDir, "seed", cfg.Seed)

	ids, err := resolveSources(*sourceList, cfg.SourceDir)
	if err != nil {
		slog.Error("failed to resolve sources", "error", err)
		os.Exit(1)
	}

	loader := &source.FileLoader{Dir: cfg.SourceDir}
	sources, decoderConfigs, err := source.LoadAll(ctx, loader, ids, 0)
	if err != nil {
		slog.Error("failed to load sources", "error", err)
		os.Exit(1)
	}
	decoderCfg, err := commonDecoderConfig(ids, decoderConfigs)
	if err != nil {
		slog.Error("incompatible sources", "error", err)
		os.Exit(1)
	}
	for id, chunks := range sources {
		slog.Info("source loaded", "id", id, "chunks", len(chunks))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	preset, err := selectPreset(cfg, *presetName, *hybridList, rng)
	if err != nil {
		slog.Error("failed to select preset", "error", err)
		os.Exit(1)
	}
	segments, err := preset.Bind(ids, rng)
	if err != nil {
		slog.Error("failed to bind preset", "error", err)
		os.Exit(1)
	}
	slog.Info("timeline prepared", "preset", preset.Name, "segments", len(segments))

	met := metrics.New(nil)
	outStore, err := store.NewDirStore(cfg.OutputDir)
	if err != nil {
		slog.Error("failed to open output store", "error", err)
		os.Exit(1)
	}

	muxer := ffmpeg.NewCommandMuxer(ffmpeg.NewExecRunner(cfg.FFmpegPath, nil), nil)
	muxer.OnFallback = met.MuxRetries.Inc

	pipe := render.New(render.Config{
		Settings:            media.Settings{Width: cfg.Width, Height: cfg.Height},
		FPS:                 cfg.FPS,
		SampleRate:          cfg.SampleRate,
		Volume:              &cfg.Volume,
		Seed:                cfg.Seed,
		ContinuousPinkState: cfg.ContinuousPink,
		Timeout:             cfg.Timeout,
	}, render.Collaborators{
		NewDecoder: func() capture.Decoder {
			return ffmpeg.NewPipeDecoder(cfg.FFmpegPath, cfg.FPS, nil)
		},
		Encoder: &ffmpeg.CaptureEncoder{Binary: cfg.FFmpegPath},
		Muxer:   muxer,
		Fetcher: synth.NewHTTPFetcher(),
		Store:   outStore,
	}, met, nil)

	g, ctx := errgroup.WithContext(ctx)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/api/renders", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(pipe.Active())
		})
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}

		g.Go(func() error {
			slog.Info("metrics server listening", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		d, err := pipe.Render(ctx, render.Job{
			Segments:      segments,
			Sources:       sources,
			DecoderConfig: decoderCfg,
		}, func(f float64) {
			slog.Debug("render progress", "fraction", fmt.Sprintf("%.2f", f))
		})
		if err != nil {
			return err
		}
		slog.Info("deliverable written",
			"path", filepath.Join(cfg.OutputDir, d.Key),
			"frames", d.Frames,
			"duration", d.Duration.Round(time.Millisecond),
			"bytes", len(d.Data))
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("render failed", "error", err)
		os.Exit(1)
	}
}

// resolveSources returns the explicit ID list, or scans dir for IVF files.
func resolveSources(list, dir string) ([]string, error) {
	if list != "" {
		return strings.Split(list, ","), nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ivf") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".ivf"))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no .ivf sources in %s", dir)
	}
	return ids, nil
}

// commonDecoderConfig requires every source to share one codec and coded
// size, since all chunks flow through a single stateful decoder.
func commonDecoderConfig(ids []string, configs map[string]media.DecoderConfig) (media.DecoderConfig, error) {
	first := configs[ids[0]]
	for _, id := range ids[1:] {
		c := configs[id]
		if c.Codec != first.Codec || c.CodedWidth != first.CodedWidth || c.CodedHeight != first.CodedHeight {
			return media.DecoderConfig{}, fmt.Errorf("source %q is %s %dx%d, want %s %dx%d like %q",
				id, c.Codec, c.CodedWidth, c.CodedHeight,
				first.Codec, first.CodedWidth, first.CodedHeight, ids[0])
		}
	}
	return first, nil
}

// selectPreset picks the named preset, builds a hybrid, or falls back to
// the first configured preset.
func selectPreset(cfg *config.Config, name, hybrid string, rng *rand.Rand) (timeline.Preset, error) {
	if hybrid != "" {
		names := strings.Split(hybrid, ",")
		presets := make([]timeline.Preset, 0, len(names))
		for _, n := range names {
			p, ok := cfg.Preset(strings.TrimSpace(n))
			if !ok {
				return timeline.Preset{}, fmt.Errorf("unknown preset %q", n)
			}
			presets = append(presets, p)
		}
		return timeline.Hybrid("hybrid:"+hybrid, presets, rng), nil
	}
	if name != "" {
		p, ok := cfg.Preset(name)
		if !ok {
			return timeline.Preset{}, fmt.Errorf("unknown preset %q", name)
		}
		return p, nil
	}
	if len(cfg.Presets) == 0 {
		return timeline.Preset{}, fmt.Errorf("no presets configured")
	}
	return cfg.Presets[0], nil
}
