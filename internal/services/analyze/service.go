// Package analyze asks a language model to propose clip candidates from a
// transcript and to re-score selected clips for final ranking.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"clipforge/internal/jobs"
	"clipforge/internal/selection"
	"clipforge/internal/services"
)

const candidatePrompt = `You find highlight-worthy moments in video
transcripts. Given timestamped lines, propose self-contained spans that
would work as short clips. Reply with a JSON array of objects:
{"start": <seconds>, "end": <seconds>, "engagement_score": <0-10>,
"title": <string>, "reason": <string>}. Spans must lie within the
transcript and start before they end.`

const scoringPrompt = `You rank short video clips for social publishing.
For each numbered clip, return an adjusted score on a 0-100 scale. Reply
with a JSON array of {"rank": <int>, "adjusted_score": <0-100>} objects.`

// Client is the chat completion surface this service needs.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service drives candidate discovery and clip scoring.
type Service struct {
	client Client
	model  string
}

// New builds a Service.
func New(client Client, model string) *Service {
	return &Service{client: client, model: model}
}

// Candidates proposes clip spans from the transcript. Invalid spans from
// the model are dropped; an entirely unusable reply is a data quality
// failure so the retry policy can run the stage again.
func (s *Service) Candidates(ctx context.Context, transcript *jobs.Transcript, videoDuration float64) ([]selection.Candidate, error) {
	var prompt strings.Builder
	for _, seg := range transcript.Segments {
		fmt.Fprintf(&prompt, "[%.1f-%.1f] %s\n", seg.Start, seg.End, seg.Text)
	}

	content, err := s.complete(ctx, candidatePrompt, prompt.String())
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyze", "candidates", "chat completion failed", err)
	}

	var raw []struct {
		Start           float64 `json:"start"`
		End             float64 `json:"end"`
		EngagementScore float64 `json:"engagement_score"`
		Title           string  `json:"title"`
		Reason          string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, services.Wrap(services.ErrDataQuality, "analyze", "candidates", "unparseable candidate list", err)
	}

	var candidates []selection.Candidate
	for _, r := range raw {
		if r.Start < 0 || r.End <= r.Start {
			continue
		}
		if videoDuration > 0 && r.Start >= videoDuration {
			continue
		}
		score := r.EngagementScore
		if score < 0 {
			score = 0
		}
		if score > 10 {
			score = 10
		}
		candidates = append(candidates, selection.Candidate{
			Start:           r.Start,
			End:             r.End,
			EngagementScore: score,
			Title:           strings.TrimSpace(r.Title),
			Reason:          strings.TrimSpace(r.Reason),
		})
	}
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrDataQuality, "analyze", "candidates", "model proposed no usable spans", nil)
	}
	return candidates, nil
}

// Score asks the model to re-rank selected clips and writes the adjusted
// scores back onto the slice. Clips the model skips keep their scores.
func (s *Service) Score(ctx context.Context, clips []jobs.SelectedClip, transcript *jobs.Transcript) error {
	if len(clips) == 0 {
		return nil
	}

	var prompt strings.Builder
	for _, clip := range clips {
		excerpt := transcriptExcerpt(transcript, clip.Start, clip.End)
		fmt.Fprintf(&prompt, "%d. [%.1f-%.1f] %s: %s\n", clip.Rank, clip.Start, clip.End, clip.Title, excerpt)
	}

	content, err := s.complete(ctx, scoringPrompt, prompt.String())
	if err != nil {
		return services.Wrap(services.ErrTransient, "score", "rank clips", "chat completion failed", err)
	}

	var raw []struct {
		Rank          int     `json:"rank"`
		AdjustedScore float64 `json:"adjusted_score"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return services.Wrap(services.ErrDataQuality, "score", "rank clips", "unparseable scores", err)
	}

	byRank := make(map[int]float64, len(raw))
	for _, r := range raw {
		if r.AdjustedScore < 0 || r.AdjustedScore > 100 {
			continue
		}
		byRank[r.Rank] = r.AdjustedScore
	}
	for i := range clips {
		if adjusted, ok := byRank[clips[i].Rank]; ok {
			clips[i].Score = adjusted
		}
	}
	return nil
}

func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// transcriptExcerpt joins the segment text overlapping a span, truncated to
// keep prompts bounded.
func transcriptExcerpt(transcript *jobs.Transcript, start, end float64) string {
	if transcript == nil {
		return ""
	}
	var parts []string
	for _, seg := range transcript.Segments {
		if seg.End <= start || seg.Start >= end {
			continue
		}
		parts = append(parts, seg.Text)
	}
	excerpt := strings.Join(parts, " ")
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	return excerpt
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
