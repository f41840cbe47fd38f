package media

import (
	"context"
	"strings"
	"testing"

	"clipforge/internal/jobs"
)

type recordingRunner struct {
	name   string
	args   []string
	output []byte
	err    error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	return r.output, r.err
}

func TestExtractAudioArgs(t *testing.T) {
	args := ExtractAudioArgs("/in/video.mp4", "/out/audio.wav", 0)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-map 0:a:0?",
		"-err_detect ignore_err",
		"-fflags +discardcorrupt",
		"-acodec pcm_s16le",
		"-ar 16000",
		"-ac 1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-t ") {
		t.Errorf("uncapped extraction should not limit duration: %s", joined)
	}
	if args[len(args)-1] != "/out/audio.wav" {
		t.Errorf("output not last: %v", args)
	}
}

func TestExtractAudioArgsWithCap(t *testing.T) {
	args := ExtractAudioArgs("/in/video.mp4", "/out/audio.wav", 600)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-t 600") {
		t.Errorf("cap missing: %s", joined)
	}
}

func TestCutArgsFormatsTimes(t *testing.T) {
	args := CutArgs("/in/video.mp4", "/out/clip.mp4", 100.5, 140.25)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 100.500") || !strings.Contains(joined, "-to 140.250") {
		t.Errorf("time flags wrong: %s", joined)
	}
	// Seek flags must precede the input for fast seeking.
	var ssIdx, inIdx int
	for i, a := range args {
		switch a {
		case "-ss":
			ssIdx = i
		case "-i":
			inIdx = i
		}
	}
	if ssIdx > inIdx {
		t.Errorf("-ss after -i: %v", args)
	}
}

func TestReframeArgsVerticalCrop(t *testing.T) {
	args := ReframeArgs("/in/clip.mp4", "/out/vertical.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "crop=ih*9/16:ih,scale=1080:1920") {
		t.Errorf("vertical filter missing: %s", joined)
	}
}

func TestBurnSubtitlesEscapesPath(t *testing.T) {
	args := BurnSubtitlesArgs("/in/clip.mp4", "/tmp/o'brien:cut.srt", "/out/final.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, `subtitles=/tmp/o\'brien\:cut.srt`) {
		t.Errorf("path not escaped: %s", joined)
	}
}

func TestDurationParsesProbeOutput(t *testing.T) {
	runner := &recordingRunner{output: []byte("1832.437000\n")}
	tools := NewToolset("ffmpeg", "ffprobe", runner)

	seconds, err := tools.Duration(context.Background(), "/in/video.mp4")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if seconds != 1832.437 {
		t.Errorf("seconds = %v", seconds)
	}
	if runner.name != "ffprobe" {
		t.Errorf("ran %s, want ffprobe", runner.name)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	runner := &recordingRunner{output: []byte("N/A")}
	tools := NewToolset("ffmpeg", "ffprobe", runner)
	if _, err := tools.Duration(context.Background(), "/in/video.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWriteSRT(t *testing.T) {
	segments := []jobs.Segment{
		{Start: 100.0, End: 102.5, Text: "hello there"},
		{Start: 102.5, End: 104.0, Text: "  "},
		{Start: 104.0, End: 106.75, Text: "general"},
	}
	var sb strings.Builder
	if err := WriteSRT(&sb, segments, 100.0); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	got := sb.String()

	want := "1\n00:00:00,000 --> 00:00:02,500\nhello there\n\n" +
		"2\n00:00:04,000 --> 00:00:06,750\ngeneral\n\n"
	if got != want {
		t.Errorf("srt output:\n%s\nwant:\n%s", got, want)
	}
}

func TestSRTTimestampHours(t *testing.T) {
	if got := srtTimestamp(3723.042); got != "01:02:03,042" {
		t.Errorf("srtTimestamp = %s", got)
	}
}
