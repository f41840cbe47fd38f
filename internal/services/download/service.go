// Package download fetches source video from YouTube into the media
// directory.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"

	"clipforge/internal/services"
)

// Service downloads source video through an innertube client.
type Service struct {
	client ytdl.Client
}

// New returns a Service with a default client.
func New() *Service {
	return &Service{client: ytdl.Client{}}
}

// Result describes a completed download.
type Result struct {
	Path            string
	Title           string
	DurationSeconds float64
}

// Fetch downloads the best progressive mp4 format for a video into destDir
// and returns the file path. Partial files are removed on failure.
func (s *Service) Fetch(ctx context.Context, videoID, destDir string) (*Result, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "download", "resolve video", videoID, err)
	}

	format := pickFormat(video.Formats)
	if format == nil {
		return nil, services.Wrap(services.ErrDataQuality, "download", "pick format",
			fmt.Sprintf("video %s has no usable mp4 format", videoID), nil)
	}

	stream, _, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "download", "open stream", videoID, err)
	}
	defer stream.Close()

	path := filepath.Join(destDir, videoID+".mp4")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(file, stream); err != nil {
		file.Close()
		os.Remove(path)
		return nil, services.Wrap(services.ErrTransient, "download", "copy stream", videoID, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close %s: %w", path, err)
	}

	return &Result{
		Path:            path,
		Title:           video.Title,
		DurationSeconds: video.Duration.Seconds(),
	}, nil
}

// pickFormat prefers progressive mp4 with both tracks, highest bitrate
// first.
func pickFormat(formats ytdl.FormatList) *ytdl.Format {
	var usable []ytdl.Format
	for _, f := range formats {
		if !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if f.AudioChannels == 0 {
			continue
		}
		usable = append(usable, f)
	}
	if len(usable) == 0 {
		return nil
	}
	sort.Slice(usable, func(i, j int) bool {
		return usable[i].Bitrate > usable[j].Bitrate
	})
	return &usable[0]
}
