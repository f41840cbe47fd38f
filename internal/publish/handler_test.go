package publish

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"clipforge/internal/jobs"
	"clipforge/internal/services"
	"clipforge/internal/services/social"
)

type fakePublisher struct {
	enabled bool
	posts   []social.Post
	err     error
}

func (p *fakePublisher) Enabled() bool { return p.enabled }
func (p *fakePublisher) Publish(_ context.Context, post social.Post) error {
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, post)
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

func TestExecutePublishesEveryClip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := jobs.NewJob("vid-1", "org-1", jobs.TierBusiness, nil)

	err := store.ReplaceSelectedClips(ctx, job.ID, []jobs.SelectedClip{
		{ID: "c1", VideoID: job.VideoID, JobID: job.ID, Rank: 1, Title: "Reveal", Score: 92, ArtifactPath: "/library/c1.mp4"},
		{ID: "c2", VideoID: job.VideoID, JobID: job.ID, Rank: 2, Title: "Viral Clip", Score: 80, ArtifactPath: "/library/c2.mp4"},
	})
	if err != nil {
		t.Fatal(err)
	}

	publisher := &fakePublisher{enabled: true}
	h := New(store, publisher, nil)
	if err := h.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(publisher.posts) != 2 {
		t.Fatalf("posts = %d", len(publisher.posts))
	}
	if publisher.posts[0].OrgID != "org-1" || publisher.posts[0].ArtifactPath != "/library/c1.mp4" {
		t.Errorf("post = %+v", publisher.posts[0])
	}
}

func TestExecuteDisabledPublisherCompletes(t *testing.T) {
	store := newStore(t)
	h := New(store, &fakePublisher{enabled: false}, nil)
	job := jobs.NewJob("vid-2", "org-1", jobs.TierStarter, nil)
	if err := h.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteMissingArtifactIsDataQuality(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := jobs.NewJob("vid-3", "org-1", jobs.TierStarter, nil)

	err := store.ReplaceSelectedClips(ctx, job.ID, []jobs.SelectedClip{
		{ID: "c1", VideoID: job.VideoID, JobID: job.ID, Rank: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	h := New(store, &fakePublisher{enabled: true}, nil)
	execErr := h.Execute(ctx, job)
	if !errors.Is(execErr, services.ErrDataQuality) {
		t.Fatalf("err = %v", execErr)
	}
}
