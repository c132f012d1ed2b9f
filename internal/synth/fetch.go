package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxSampleBytes bounds how much of an audio resource is read. Segments are
// short, so anything past this would be truncated later anyway.
const maxSampleBytes = 32 << 20

// HTTPFetcher resolves Sample audio URLs over HTTP(S) and decodes the body
// as PCM WAV. Plain paths and file:// URLs are read from disk, which keeps
// local presets usable offline.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a bounded-timeout client.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*PCMBuffer, error) {
	data, err := f.read(ctx, url)
	if err != nil {
		return nil, err
	}
	buf, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return buf, nil
}

func (f *HTTPFetcher) read(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(strings.TrimPrefix(url, "file://"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSampleBytes))
}
