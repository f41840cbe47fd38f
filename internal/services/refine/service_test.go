package refine

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"clipforge/internal/jobs"
)

type fakeClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (c *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

func sampleSegments() []jobs.Segment {
	return []jobs.Segment{
		{Index: 0, Start: 0, End: 2, Text: "helo wrld"},
		{Index: 1, Start: 2, End: 4, Text: "its me"},
	}
}

func TestRefineMergesByIndex(t *testing.T) {
	client := &fakeClient{content: `[{"index":0,"text":"Hello world"},{"index":1,"text":"It's me"}]`}
	svc := New(client, "test-model", 0)

	out, err := svc.Refine(context.Background(), sampleSegments())
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out[0].Text != "Hello world" || out[1].Text != "It's me" {
		t.Errorf("texts = %q, %q", out[0].Text, out[1].Text)
	}
	// Timestamps never move.
	if out[0].Start != 0 || out[0].End != 2 || out[1].Start != 2 {
		t.Errorf("timestamps changed: %+v", out)
	}
}

func TestRefineToleratesCodeFence(t *testing.T) {
	client := &fakeClient{content: "```json\n[{\"index\":0,\"text\":\"Hello\"}]\n```"}
	svc := New(client, "test-model", 0)

	out, err := svc.Refine(context.Background(), sampleSegments())
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out[0].Text != "Hello" {
		t.Errorf("fenced payload not parsed: %q", out[0].Text)
	}
	if out[1].Text != "its me" {
		t.Errorf("unmentioned segment changed: %q", out[1].Text)
	}
}

func TestRefineIgnoresUnknownIndexes(t *testing.T) {
	client := &fakeClient{content: `[{"index":7,"text":"ghost"},{"index":1,"text":"fixed"}]`}
	svc := New(client, "test-model", 0)

	out, err := svc.Refine(context.Background(), sampleSegments())
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out[0].Text != "helo wrld" {
		t.Errorf("segment 0 should be untouched: %q", out[0].Text)
	}
	if out[1].Text != "fixed" {
		t.Errorf("segment 1 = %q", out[1].Text)
	}
}

func TestRefineFailureReturnsOriginals(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}
	svc := New(client, "test-model", 0)

	out, err := svc.Refine(context.Background(), sampleSegments())
	if err == nil {
		t.Fatal("expected error")
	}
	if out[0].Text != "helo wrld" || out[1].Text != "its me" {
		t.Errorf("fallback segments mutated: %+v", out)
	}
}

func TestRefineCapsSegmentsSent(t *testing.T) {
	client := &fakeClient{content: `[]`}
	svc := New(client, "test-model", 1)

	segs := sampleSegments()
	if _, err := svc.Refine(context.Background(), segs); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	prompt := client.lastReq.Messages[1].Content
	if want := "0: helo wrld\n"; prompt != want {
		t.Errorf("prompt = %q, want only the first segment", prompt)
	}
}
