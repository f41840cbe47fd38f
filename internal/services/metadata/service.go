// Package metadata looks up source video details through the YouTube Data
// API.
package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"clipforge/internal/services"
)

// Metadata is the subset of video details the pipeline consumes.
type Metadata struct {
	Title           string
	Description     string
	ChannelTitle    string
	DurationSeconds float64
}

// Service wraps the YouTube Data API client.
type Service struct {
	client *youtube.Service
}

// New builds a Service authenticated with an API key.
func New(ctx context.Context, apiKey string) (*Service, error) {
	client, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("build youtube client: %w", err)
	}
	return &Service{client: client}, nil
}

// Fetch loads metadata for one video id.
func (s *Service) Fetch(ctx context.Context, videoID string) (*Metadata, error) {
	call := s.client.Videos.
		List([]string{"snippet", "contentDetails"}).
		Id(videoID).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch metadata", videoID, err)
	}
	if len(response.Items) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "fetch metadata",
			fmt.Sprintf("video %s not found", videoID), nil)
	}

	item := response.Items[0]
	md := &Metadata{
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelTitle: item.Snippet.ChannelTitle,
	}
	if item.ContentDetails != nil {
		md.DurationSeconds = ParseISO8601Duration(item.ContentDetails.Duration)
	}
	return md, nil
}

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISO8601Duration converts the API's PT#H#M#S form to seconds.
// Unparseable input yields zero, which downstream treats as unknown.
func ParseISO8601Duration(raw string) float64 {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0
	}
	var seconds float64
	for i, scale := range []float64{3600, 60, 1} {
		if match[i+1] == "" {
			continue
		}
		v, err := strconv.Atoi(match[i+1])
		if err != nil {
			return 0
		}
		seconds += float64(v) * scale
	}
	return seconds
}
