// Package images mirrors remote artwork (avatars, box art) into a local
// cache directory so display layers can serve files instead of hotlinking.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RaeedAhmed/twitch-py/pkg/logging"
)

// maxConcurrentDownloads bounds the fan-out of one Download call.
const maxConcurrentDownloads = 8

// Artwork is one remote image reference to mirror.
type Artwork struct {
	ID  int64
	URL string
}

// Mirror downloads artwork into dir/<kind>/<id>.jpg.
type Mirror struct {
	dir        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewMirror creates a mirror rooted at dir.
func NewMirror(dir string) *Mirror {
	return &Mirror{
		dir:        dir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewLogger("image-mirror"),
	}
}

// Download fetches every artwork concurrently and returns local file paths
// keyed by id. Failures are per-image: a failed download is logged and left
// out of the result, so callers keep the remote URL for that entity.
func (m *Mirror) Download(ctx context.Context, kind string, art []Artwork) map[int64]string {
	paths := make(map[int64]string, len(art))
	if len(art) == 0 {
		return paths
	}

	if err := os.MkdirAll(filepath.Join(m.dir, kind), 0o755); err != nil {
		m.logger.Warn().Err(err).Str("kind", kind).Msg("Create mirror directory failed")
		return paths
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentDownloads)
	)
	for _, a := range art {
		wg.Add(1)
		go func(a Artwork) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path, err := m.fetch(ctx, kind, a)
			if err != nil {
				m.logger.Warn().
					Err(err).
					Str("kind", kind).
					Int64("id", a.ID).
					Msg("Artwork download failed")
				return
			}
			mu.Lock()
			paths[a.ID] = path
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	m.logger.Debug().
		Str("kind", kind).
		Int("requested", len(art)).
		Int("mirrored", len(paths)).
		Msg("Artwork mirror pass complete")

	return paths
}

func (m *Mirror) fetch(ctx context.Context, kind string, a Artwork) (string, error) {
	path := filepath.Join(m.dir, kind, strconv.FormatInt(a.ID, 10)+".jpg")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: %s", resp.Status)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write image file: %w", err)
	}
	return path, nil
}

// Clear removes all mirrored files for the given kinds, or the whole
// mirror when no kind is named.
func (m *Mirror) Clear(kinds ...string) error {
	if len(kinds) == 0 {
		if err := os.RemoveAll(m.dir); err != nil {
			return fmt.Errorf("clear mirror: %w", err)
		}
		return nil
	}
	for _, kind := range kinds {
		if err := os.RemoveAll(filepath.Join(m.dir, kind)); err != nil {
			return fmt.Errorf("clear mirror %s: %w", kind, err)
		}
	}
	return nil
}
