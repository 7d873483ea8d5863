package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/enrich"
	"github.com/RaeedAhmed/twitch-py/internal/store"
)

// Fallbacks for clips whose category was deleted or never set.
const (
	fallbackGameName = "Streaming"
)

// Clips are created roughly a minute into the moment they capture, so the
// source VOD link rewinds by this much to land before the action.
const clipRewindSeconds = 61

// Clip is a channel highlight ready for display. VODLink points into the
// source broadcast at the clip's timestamp and is empty when the VOD no
// longer exists.
type Clip struct {
	ID           string
	Title        string
	URL          string
	ThumbnailURL string
	ViewCount    int
	CreatedAt    string
	TimeSince    string
	GameName     string
	BoxArtURL    string
	VODLink      string
}

type clipRecord struct {
	ID           string `json:"id"`
	VideoID      string `json:"video_id"`
	GameID       string `json:"game_id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ViewCount    int    `json:"view_count"`
	CreatedAt    string `json:"created_at"`
}

type vodRecord struct {
	CreatedAt string `json:"created_at"`
}

// Clips returns one streamer's clips created inside [start, end), sorted
// by view count descending. Categories referenced by the clips are cached
// before lookup; clips whose category cannot be resolved fall back to
// placeholder art.
func (s *Service) Clips(ctx context.Context, broadcasterID int64, start, end time.Time) ([]Clip, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("clips?broadcaster_id=%d&first=100&started_at=%s&ended_at=%s",
		broadcasterID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)))
	if err != nil {
		return nil, fmt.Errorf("clips: %w", err)
	}

	records := make([]clipRecord, 0, len(raw))
	gameIDs := make([]int64, 0, len(raw))
	for _, msg := range raw {
		var rec clipRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("decode clip record: %w", err)
		}
		records = append(records, rec)
		if id, err := strconv.ParseInt(rec.GameID, 10, 64); err == nil {
			gameIDs = append(gameIDs, id)
		}
	}

	if err := s.catalog.EnsureCached(ctx, gameIDs, catalog.KindGame); err != nil {
		return nil, err
	}

	clips := make([]Clip, len(records))
	for i, rec := range records {
		since, err := enrich.FormatElapsed(s.clock, rec.CreatedAt)
		if err != nil {
			s.logger.Warn().Err(err).Str("clip_id", rec.ID).Msg("Unparseable clip timestamp")
		}

		clip := Clip{
			ID:           rec.ID,
			Title:        rec.Title,
			URL:          rec.URL,
			ThumbnailURL: clipThumbnail(rec.ThumbnailURL),
			ViewCount:    rec.ViewCount,
			CreatedAt:    rec.CreatedAt,
			TimeSince:    since,
			GameName:     fallbackGameName,
			BoxArtURL:    enrich.DefaultBoxArtURL,
		}
		if id, err := strconv.ParseInt(rec.GameID, 10, 64); err == nil {
			if game, err := s.store.GameByID(ctx, id); err == nil {
				clip.GameName = game.Name
				clip.BoxArtURL = game.BoxArtURL
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}
		clips[i] = clip
	}

	s.resolveVODLinks(ctx, records, clips)

	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].ViewCount > clips[j].ViewCount
	})
	return clips, nil
}

// resolveVODLinks looks up each clip's source VOD concurrently and builds
// a timestamped link into it. Lookup failures leave the link empty; a
// clip is still useful without one.
func (s *Service) resolveVODLinks(ctx context.Context, records []clipRecord, clips []Clip) {
	var wg sync.WaitGroup
	for i, rec := range records {
		if rec.VideoID == "" {
			continue
		}
		wg.Add(1)
		go func(i int, rec clipRecord) {
			defer wg.Done()
			link, err := s.vodLink(ctx, rec)
			if err != nil {
				s.logger.Warn().Err(err).Str("clip_id", rec.ID).Msg("VOD lookup failed")
				return
			}
			clips[i].VODLink = link
		}(i, rec)
	}
	wg.Wait()
}

func (s *Service) vodLink(ctx context.Context, rec clipRecord) (string, error) {
	raw, err := s.client.Get(ctx, "videos?id="+rec.VideoID)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	var vod vodRecord
	if err := json.Unmarshal(raw[0], &vod); err != nil {
		return "", fmt.Errorf("decode vod record: %w", err)
	}

	vodStart, err := time.Parse(time.RFC3339, vod.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("parse vod timestamp: %w", err)
	}
	clipAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("parse clip timestamp: %w", err)
	}

	offset := int(clipAt.Sub(vodStart).Seconds()) - clipRewindSeconds
	if offset < 0 {
		offset = 0
	}
	hours := offset / 3600
	minutes := offset % 3600 / 60
	seconds := offset % 60
	return fmt.Sprintf("https://www.twitch.tv/videos/%s/?t=%dh%dm%ds", rec.VideoID, hours, minutes, seconds), nil
}

// clipThumbnail strips the preview-size suffix from a clip thumbnail URL
// ("...-preview-480x272.jpg" becomes "....jpg").
func clipThumbnail(u string) string {
	idx := strings.LastIndex(u, "-")
	if idx < 0 {
		return u
	}
	return u[:idx] + ".jpg"
}
