package tracker

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageLoaderConfig controls image fetching
type ImageLoaderConfig struct {
	// Attempts and Interval bound how long a draw waits for images
	Attempts int
	Interval time.Duration
	MaxBytes int64
	Client   *http.Client
	Clock    clockwork.Clock
}

func DefaultImageLoaderConfig() ImageLoaderConfig {
	return ImageLoaderConfig{
		Attempts: 10,
		Interval: time.Second,
		MaxBytes: 16 << 20,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Clock:    clockwork.NewRealClock(),
	}
}

type imageEntry struct {
	done chan struct{}
	img  image.Image
	err  error
}

// ImageLoader fetches and decodes decorative images once per URL
type ImageLoader struct {
	cfg     ImageLoaderConfig
	mu      sync.Mutex
	entries map[string]*imageEntry
}

func NewImageLoader(cfg ImageLoaderConfig) *ImageLoader {
	def := DefaultImageLoaderConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Client == nil {
		cfg.Client = def.Client
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	return &ImageLoader{cfg: cfg, entries: make(map[string]*imageEntry)}
}

// start begins fetching url unless it is loading or loaded. Failed loads are retried.
func (l *ImageLoader) start(url string) *imageEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[url]; ok {
		select {
		case <-e.done:
			if e.err == nil {
				return e
			}
		default:
			return e
		}
	}
	e := &imageEntry{done: make(chan struct{})}
	l.entries[url] = e
	go func() {
		defer close(e.done)
		e.img, e.err = l.fetch(url)
		if e.err != nil {
			log.Warn().Err(e.err).Str("url", url).Msg("failed to load tracker image")
		}
	}()
	return e
}

func (l *ImageLoader) fetch(url string) (image.Image, error) {
	resp, err := l.cfg.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, l.cfg.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Wait starts loading urls and polls until all are complete or the attempts
// run out. It returns the urls that loaded successfully.
func (l *ImageLoader) Wait(ctx context.Context, urls ...string) map[string]bool {
	entries := make(map[string]*imageEntry, len(urls))
	for _, u := range urls {
		if u != "" {
			entries[u] = l.start(u)
		}
	}

	complete := func() bool {
		for _, e := range entries {
			select {
			case <-e.done:
			default:
				return false
			}
		}
		return true
	}

	for attempt := 0; !complete() && attempt < l.cfg.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return loadedSet(entries)
		case <-l.cfg.Clock.After(l.cfg.Interval):
		}
	}
	if !complete() {
		log.Warn().Int("images", len(entries)).Msg("tracker images not ready, drawing without them")
	}
	return loadedSet(entries)
}

// Image returns the decoded image for url if it has loaded
func (l *ImageLoader) Image(url string) (image.Image, bool) {
	l.mu.Lock()
	e, ok := l.entries[url]
	l.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.done:
		return e.img, e.err == nil
	default:
		return nil, false
	}
}

func loadedSet(entries map[string]*imageEntry) map[string]bool {
	out := make(map[string]bool, len(entries))
	for u, e := range entries {
		select {
		case <-e.done:
			out[u] = e.err == nil
		default:
			out[u] = false
		}
	}
	return out
}
