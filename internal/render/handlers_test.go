package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/artifacts"
	"clipforge/internal/jobs"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

type recordingRunner struct {
	commands [][]string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	return nil, nil
}

type fakeScorer struct {
	adjust map[int]float64
	err    error
}

func (s *fakeScorer) Score(_ context.Context, clips []jobs.SelectedClip, _ *jobs.Transcript) error {
	if s.err != nil {
		return s.err
	}
	for i := range clips {
		if v, ok := s.adjust[clips[i].Rank]; ok {
			clips[i].Score = v
		}
	}
	return nil
}

func newStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedClips(t *testing.T, store *jobs.Store, job *jobs.Job) []jobs.SelectedClip {
	t.Helper()
	clips := []jobs.SelectedClip{
		{ID: "c1", VideoID: job.VideoID, JobID: job.ID, Rank: 1, Start: 100, End: 140, Score: 90},
		{ID: "c2", VideoID: job.VideoID, JobID: job.ID, Rank: 2, Start: 0, End: 30, Score: 80},
	}
	if err := store.ReplaceSelectedClips(context.Background(), job.ID, clips); err != nil {
		t.Fatal(err)
	}
	return clips
}

func TestReframeCutsEveryClip(t *testing.T) {
	store := newStore(t)
	mediaDir := t.TempDir()
	job := jobs.NewJob("vid-1", "org-1", jobs.TierStarter, nil)
	seedClips(t, store, job)

	runner := &recordingRunner{}
	h := NewReframeHandler(store, media.NewToolset("ffmpeg", "ffprobe", runner), mediaDir)
	if err := h.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Two clips, two commands each: cut then reframe.
	if len(runner.commands) != 4 {
		t.Fatalf("commands = %d: %v", len(runner.commands), runner.commands)
	}
	first := strings.Join(runner.commands[0], " ")
	if !strings.Contains(first, "-ss 100.000") {
		t.Errorf("first cut = %s", first)
	}
	second := strings.Join(runner.commands[1], " ")
	if !strings.Contains(second, "crop=ih*9/16:ih") {
		t.Errorf("reframe command = %s", second)
	}
}

func TestReframeWithoutClipsIsDataQuality(t *testing.T) {
	store := newStore(t)
	h := NewReframeHandler(store, media.NewToolset("ffmpeg", "ffprobe", &recordingRunner{}), t.TempDir())
	job := jobs.NewJob("vid-none", "org-1", jobs.TierStarter, nil)
	err := h.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrDataQuality) {
		t.Fatalf("err = %v", err)
	}
}

func TestScoreRefreshesRanks(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := jobs.NewJob("vid-2", "org-1", jobs.TierStarter, nil)
	seedClips(t, store, job)

	// The scorer demotes the old leader.
	h := NewScoreHandler(store, &fakeScorer{adjust: map[int]float64{1: 40, 2: 95}}, nil)
	if err := h.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	clips, _ := store.ListSelectedClips(ctx, job.VideoID)
	if clips[0].ID != "c2" || clips[0].Rank != 1 || clips[0].Score != 95 {
		t.Errorf("new leader = %+v", clips[0])
	}
	if clips[1].ID != "c1" || clips[1].Rank != 2 {
		t.Errorf("demoted clip = %+v", clips[1])
	}
}

func TestScoreWithoutScorerIsNoop(t *testing.T) {
	store := newStore(t)
	h := NewScoreHandler(store, nil, nil)
	job := jobs.NewJob("vid-3", "org-1", jobs.TierStarter, nil)
	if err := h.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestCaptionWritesShiftedSRT(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	mediaDir := t.TempDir()
	job := jobs.NewJob("vid-4", "org-1", jobs.TierStarter, nil)
	seedClips(t, store, job)
	if err := os.MkdirAll(media.ClipDir(mediaDir, job.VideoID), 0o755); err != nil {
		t.Fatal(err)
	}

	err := store.UpsertTranscript(ctx, &jobs.Transcript{
		VideoID: job.VideoID,
		Segments: []jobs.Segment{
			{Index: 0, Start: 0, End: 5, Text: "intro"},
			{Index: 1, Start: 102, End: 106, Text: "the reveal"},
			{Index: 2, Start: 300, End: 305, Text: "outro"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	runner := &recordingRunner{}
	h := NewCaptionHandler(store, media.NewToolset("ffmpeg", "ffprobe", runner), mediaDir)
	if err := h.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Clip c1 spans [100, 140]; only the reveal segment lands in it,
	// shifted to start at 2 seconds.
	srt, err := os.ReadFile(media.ClipSRTPath(mediaDir, job.VideoID, "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(srt), "00:00:02,000 --> 00:00:06,000") {
		t.Errorf("clip srt = %q", srt)
	}
	if strings.Contains(string(srt), "intro") || strings.Contains(string(srt), "outro") {
		t.Errorf("out-of-window segments leaked: %q", srt)
	}
	if len(runner.commands) != 2 {
		t.Errorf("burn commands = %d", len(runner.commands))
	}
}

func TestGenerateUploadsAndRecordsArtifacts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	mediaDir := t.TempDir()
	libraryDir := t.TempDir()
	job := jobs.NewJob("vid-5", "org-1", jobs.TierStarter, nil)
	clips := seedClips(t, store, job)

	if err := os.MkdirAll(media.ClipDir(mediaDir, job.VideoID), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, clip := range clips {
		path := media.ClipPath(mediaDir, job.VideoID, clip.ID, "captioned")
		if err := os.WriteFile(path, []byte("final render"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := NewGenerateHandler(store, artifacts.NewFilesystemStore(libraryDir), mediaDir)
	if err := h.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := store.ListSelectedClips(ctx, job.VideoID)
	for _, clip := range stored {
		if clip.ArtifactPath == "" {
			t.Errorf("clip %s has no artifact path", clip.ID)
			continue
		}
		if _, err := os.Stat(clip.ArtifactPath); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
}
