package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clipforge/internal/services"
)

// Toolset wraps the ffmpeg and ffprobe binaries behind a Runner.
type Toolset struct {
	FFmpeg  string
	FFprobe string
	runner  Runner
}

// NewToolset builds a Toolset. A nil runner gets the os/exec default.
func NewToolset(ffmpeg, ffprobe string, runner Runner) *Toolset {
	if runner == nil {
		runner = NewRunner()
	}
	return &Toolset{FFmpeg: ffmpeg, FFprobe: ffprobe, runner: runner}
}

// ExtractAudioArgs builds the argument list for pulling mono 16kHz PCM out
// of a video, tolerant of stream damage. capSeconds > 0 truncates the
// output.
func ExtractAudioArgs(input, output string, capSeconds int) []string {
	args := []string{
		"-y",
		"-err_detect", "ignore_err",
		"-fflags", "+discardcorrupt",
		"-i", input,
		"-map", "0:a:0?",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
	}
	if capSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(capSeconds))
	}
	return append(args, output)
}

// ExtractAudio writes a whisper-ready wav file next to the source.
func (t *Toolset) ExtractAudio(ctx context.Context, input, output string, capSeconds int) error {
	_, err := t.runner.Run(ctx, t.FFmpeg, ExtractAudioArgs(input, output, capSeconds)...)
	return err
}

// NormalizeArgs builds the argument list for re-encoding arbitrary uploads
// into a uniform h264/aac mp4 the downstream stages can cut reliably.
func NormalizeArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	}
}

// Normalize re-encodes the input into the canonical working format.
func (t *Toolset) Normalize(ctx context.Context, input, output string) error {
	_, err := t.runner.Run(ctx, t.FFmpeg, NormalizeArgs(input, output)...)
	return err
}

// CutArgs builds the argument list for extracting a clip span. Seeking
// before the input keeps it fast; re-encoding keeps the cut frame-exact.
func CutArgs(input, output string, start, end float64) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", input,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"-c:a", "aac",
		"-movflags", "+faststart",
		output,
	}
}

// Cut extracts [start, end) from the input into a standalone clip.
func (t *Toolset) Cut(ctx context.Context, input, output string, start, end float64) error {
	_, err := t.runner.Run(ctx, t.FFmpeg, CutArgs(input, output, start, end)...)
	return err
}

// ReframeArgs builds the argument list for converting a landscape clip to
// the 9:16 vertical frame, center-cropped then scaled to 1080x1920.
func ReframeArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-vf", "crop=ih*9/16:ih,scale=1080:1920",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"-c:a", "copy",
		output,
	}
}

// Reframe converts a clip to the vertical delivery format.
func (t *Toolset) Reframe(ctx context.Context, input, output string) error {
	_, err := t.runner.Run(ctx, t.FFmpeg, ReframeArgs(input, output)...)
	return err
}

// BurnSubtitlesArgs builds the argument list for rendering an SRT file into
// the video frames.
func BurnSubtitlesArgs(input, srtPath, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(srtPath)),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"-c:a", "copy",
		output,
	}
}

// BurnSubtitles renders captions into the clip.
func (t *Toolset) BurnSubtitles(ctx context.Context, input, srtPath, output string) error {
	_, err := t.runner.Run(ctx, t.FFmpeg, BurnSubtitlesArgs(input, srtPath, output)...)
	return err
}

// Duration probes the container duration in seconds.
func (t *Toolset) Duration(ctx context.Context, path string) (float64, error) {
	output, err := t.runner.Run(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(output))
	seconds, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "ffprobe",
			fmt.Sprintf("unparseable duration %q for %s", raw, path), parseErr)
	}
	return seconds, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// escapeFilterPath quotes characters the ffmpeg filter parser treats
// specially.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return replacer.Replace(path)
}
