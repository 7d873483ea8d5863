package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RaeedAhmed/twitch-py/internal/enrich"
)

// Placeholder shown for archives whose thumbnail has not been generated
// yet (the VOD is still processing).
const processingThumbnailURL = "https://vod-secure.twitch.tv/_404/404_processing_320x180.png"

const videoThumbnailSize = "480x270"

// Video is a past broadcast ready for display.
type Video struct {
	ID           string
	UserID       string
	Title        string
	URL          string
	ThumbnailURL string
	ViewCount    int
	Duration     string
	CreatedAt    string
	Age          string
}

type videoRecord struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ViewCount    int    `json:"view_count"`
	Duration     string `json:"duration"`
	CreatedAt    string `json:"created_at"`
}

// Videos collects every archived broadcast of one streamer, newest first
// as returned by the remote.
func (s *Service) Videos(ctx context.Context, userID int64) ([]Video, error) {
	raw, err := s.pager.CollectAll(ctx, fmt.Sprintf("videos?user_id=%d&type=archive", userID))
	if err != nil {
		return nil, fmt.Errorf("videos: %w", err)
	}

	videos := make([]Video, 0, len(raw))
	for _, msg := range raw {
		var rec videoRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("decode video record: %w", err)
		}

		thumb := strings.ReplaceAll(rec.ThumbnailURL, "%{width}x%{height}", videoThumbnailSize)
		if thumb == "" {
			thumb = processingThumbnailURL
		}

		age, err := enrich.FormatElapsed(s.clock, rec.CreatedAt)
		if err != nil {
			s.logger.Warn().Err(err).Str("video_id", rec.ID).Msg("Unparseable video timestamp")
			age = ""
		}

		videos = append(videos, Video{
			ID:           rec.ID,
			UserID:       rec.UserID,
			Title:        rec.Title,
			URL:          rec.URL,
			ThumbnailURL: thumb,
			ViewCount:    rec.ViewCount,
			Duration:     normalizeDuration(rec.Duration),
			CreatedAt:    rec.CreatedAt,
			Age:          age,
		})
	}
	return videos, nil
}

// normalizeDuration pads remote durations that omit the hour component so
// columns line up ("45m12s" becomes "0h45m12s").
func normalizeDuration(d string) string {
	if d == "" || strings.Contains(d, "h") {
		return d
	}
	return "0h" + d
}
