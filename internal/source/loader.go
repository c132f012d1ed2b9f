package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/voidwire/smear/media"
)

// defaultLoadConcurrency caps how many sources are parsed at once. Parsing
// is cheap but payload copies are not, and a small fixed cap uses the
// hardware without unbounded fan-out.
const defaultLoadConcurrency = 4

// Loader resolves one source ID to its chunk array and decoder config.
type Loader interface {
	Load(ctx context.Context, id string) ([]media.EncodedChunk, media.DecoderConfig, error)
}

// FileLoader resolves source IDs to IVF files under Dir. An ID maps to
// "<Dir>/<id>.ivf" unless it already carries the extension.
type FileLoader struct {
	Dir string
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, id string) ([]media.EncodedChunk, media.DecoderConfig, error) {
	name := id
	if filepath.Ext(name) == "" {
		name += ".ivf"
	}
	f, err := os.Open(filepath.Join(l.Dir, name))
	if err != nil {
		return nil, media.DecoderConfig{}, fmt.Errorf("source %q: %w", id, err)
	}
	defer f.Close()
	return ReadIVF(f)
}

// LoadAll loads every listed source with bounded parallelism and joins the
// results before returning, so expansion always starts from a complete
// source map. A non-positive limit selects the default cap. The first
// failure cancels the remaining loads.
func LoadAll(ctx context.Context, l Loader, ids []string, limit int) (map[string][]media.EncodedChunk, map[string]media.DecoderConfig, error) {
	if limit <= 0 {
		limit = defaultLoadConcurrency
	}

	var (
		mu      sync.Mutex
		chunks  = make(map[string][]media.EncodedChunk, len(ids))
		configs = make(map[string]media.DecoderConfig, len(ids))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			cs, cfg, err := l.Load(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			chunks[id] = cs
			configs[id] = cfg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return chunks, configs, nil
}
