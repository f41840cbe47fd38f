package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := NewJob("vid-1", "org-1", TierBusiness, map[string]any{"maxDuration": 45})
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	loaded, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetJob returned nil for existing job")
	}
	if loaded.Status != StatusPending {
		t.Errorf("status = %s, want pending", loaded.Status)
	}
	if loaded.Tier != TierBusiness {
		t.Errorf("tier = %s, want business", loaded.Tier)
	}
	if v, ok := loaded.ConfigFloat("max_clip_duration", "maxDuration"); !ok || v != 45 {
		t.Errorf("ConfigFloat = %v, %v, want 45, true", v, ok)
	}
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	job, err := store.GetJob(context.Background(), "absent")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Fatal("expected nil job for missing id")
	}
}

func TestTransitionStatusGuarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := NewJob("vid-2", "org-1", TierStarter, nil)
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	ok, err := store.TransitionStatus(ctx, job.ID, StatusPending, StatusDownloading, "download", 5)
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}

	// Stale writer still holding the old status loses.
	ok, err = store.TransitionStatus(ctx, job.ID, StatusPending, StatusNormalizing, "normalize", 10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stale transition should not apply")
	}

	// Backward transitions never apply.
	ok, err = store.TransitionStatus(ctx, job.ID, StatusDownloading, StatusPending, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("backward transition should not apply")
	}
}

func TestMarkFailedLeavesTerminalAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := NewJob("vid-3", "org-1", TierStarter, nil)
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, job.ID, "download timed out"); err != nil {
		t.Fatal(err)
	}
	loaded, _ := store.GetJob(ctx, job.ID)
	if loaded.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", loaded.Status)
	}
	if loaded.ErrorMessage != "download timed out" {
		t.Errorf("error_message = %q", loaded.ErrorMessage)
	}

	// A second failure must not overwrite the first terminal record.
	if err := store.MarkFailed(ctx, job.ID, "later error"); err != nil {
		t.Fatal(err)
	}
	loaded, _ = store.GetJob(ctx, job.ID)
	if loaded.ErrorMessage != "download timed out" {
		t.Errorf("terminal error overwritten: %q", loaded.ErrorMessage)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tr := &Transcript{
		VideoID:  "vid-4",
		Language: "en",
		Text:     "hello world",
		Segments: []Segment{
			{Index: 0, Start: 0, End: 1.5, Text: "hello", Words: []Word{{Start: 0, End: 0.6, Word: "hello", Confidence: 0.97}}},
			{Index: 1, Start: 1.5, End: 3, Text: "world"},
		},
		Confidence:  0.97,
		StoragePath: "/library/org-1/vid-4/vid-4_transcript.json",
	}
	if err := store.UpsertTranscript(ctx, tr); err != nil {
		t.Fatalf("UpsertTranscript: %v", err)
	}

	loaded, err := store.GetTranscript(ctx, "vid-4")
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if loaded == nil || len(loaded.Segments) != 2 {
		t.Fatalf("unexpected transcript %+v", loaded)
	}
	if loaded.Segments[0].Words[0].Word != "hello" {
		t.Errorf("word timing lost: %+v", loaded.Segments[0])
	}
	if loaded.Confidence != 0.97 || loaded.StoragePath != tr.StoragePath {
		t.Errorf("artifact fields lost: %+v", loaded)
	}

	// Upsert replaces.
	tr.Refined = true
	tr.Text = "hello there world"
	if err := store.UpsertTranscript(ctx, tr); err != nil {
		t.Fatal(err)
	}
	loaded, _ = store.GetTranscript(ctx, "vid-4")
	if !loaded.Refined || loaded.Text != "hello there world" {
		t.Errorf("upsert did not replace: %+v", loaded)
	}
}

func TestUpdateConfiguration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := NewJob("vid-8", "org-1", TierStarter, nil)
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Configuration["source_duration"] = 1832.4
	if err := store.UpdateConfiguration(ctx, job.ID, job.Configuration); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}

	loaded, _ := store.GetJob(ctx, job.ID)
	if v, ok := loaded.ConfigFloat("source_duration"); !ok || v != 1832.4 {
		t.Errorf("source_duration = %v, %v", v, ok)
	}
}

func TestCandidatesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if payload, err := store.GetCandidates(ctx, "vid-9"); err != nil || payload != nil {
		t.Fatalf("missing candidates = %q, %v", payload, err)
	}
	if err := store.ReplaceCandidates(ctx, "vid-9", []byte(`[{"start":0}]`)); err != nil {
		t.Fatalf("ReplaceCandidates: %v", err)
	}
	payload, err := store.GetCandidates(ctx, "vid-9")
	if err != nil || string(payload) != `[{"start":0}]` {
		t.Errorf("payload = %q, %v", payload, err)
	}
	if err := store.ReplaceCandidates(ctx, "vid-9", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	payload, _ = store.GetCandidates(ctx, "vid-9")
	if string(payload) != `[]` {
		t.Errorf("upsert did not replace: %q", payload)
	}
}

func TestSelectedClipsReplaceAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	clips := []SelectedClip{
		{ID: "c1", VideoID: "vid-5", Rank: 1, Start: 100, End: 140, Score: 90, Title: "Viral Clip"},
		{ID: "c2", VideoID: "vid-5", Rank: 2, Start: 0, End: 30, Score: 80, Title: "Viral Clip"},
	}
	if err := store.ReplaceSelectedClips(ctx, "job-5", clips); err != nil {
		t.Fatalf("ReplaceSelectedClips: %v", err)
	}

	listed, err := store.ListSelectedClips(ctx, "vid-5")
	if err != nil {
		t.Fatalf("ListSelectedClips: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "c1" {
		t.Fatalf("unexpected clips %+v", listed)
	}

	if err := store.SetClipArtifact(ctx, "c1", "/library/org/vid-5/c1.mp4"); err != nil {
		t.Fatal(err)
	}
	listed, _ = store.ListSelectedClips(ctx, "vid-5")
	if listed[0].ArtifactPath == "" {
		t.Error("artifact path not recorded")
	}

	// Replace shrinks the set.
	if err := store.ReplaceSelectedClips(ctx, "job-5", clips[:1]); err != nil {
		t.Fatal(err)
	}
	listed, _ = store.ListSelectedClips(ctx, "vid-5")
	if len(listed) != 1 {
		t.Errorf("replace kept %d clips, want 1", len(listed))
	}
}

func TestPruneTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := NewJob("vid-6", "org-1", TierStarter, nil)
	if err := store.CreateJob(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, old.ID, "boom"); err != nil {
		t.Fatal(err)
	}
	fresh := NewJob("vid-7", "org-1", TierStarter, nil)
	if err := store.CreateJob(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	removed, err := store.PruneTerminal(ctx, 0)
	if err != nil {
		t.Fatalf("PruneTerminal: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if job, _ := store.GetJob(ctx, fresh.ID); job == nil {
		t.Error("pending job pruned")
	}
}
