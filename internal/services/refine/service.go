// Package refine rewrites transcript segment text with a language model
// while keeping every timestamp untouched. Refinement is best effort: any
// model failure falls back to the original segments.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"clipforge/internal/jobs"
	"clipforge/internal/services"
)

const systemPrompt = `You clean up speech-to-text output. Fix spelling,
punctuation, and casing. Never merge, split, reorder, or drop lines.
Reply with a JSON array of {"index": <int>, "text": <string>} objects,
one per input line, same indexes.`

// Client is the chat completion surface this service needs.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service refines transcripts through a chat model.
type Service struct {
	client      Client
	model       string
	maxSegments int
}

// New builds a Service. maxSegments caps how many segments are sent per
// request; segments past the cap pass through unrefined.
func New(client Client, model string, maxSegments int) *Service {
	if maxSegments <= 0 {
		maxSegments = 120
	}
	return &Service{client: client, model: model, maxSegments: maxSegments}
}

// Refine returns segments with cleaned text. Timestamps and segment count
// are always preserved; on model failure the input comes back unchanged
// along with the error so callers can log and continue.
func (s *Service) Refine(ctx context.Context, segments []jobs.Segment) ([]jobs.Segment, error) {
	if len(segments) == 0 {
		return segments, nil
	}

	batch := segments
	if len(batch) > s.maxSegments {
		batch = batch[:s.maxSegments]
	}

	var prompt strings.Builder
	for _, seg := range batch {
		fmt.Fprintf(&prompt, "%d: %s\n", seg.Index, seg.Text)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return segments, services.Wrap(services.ErrTransient, "transcribe", "refine", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return segments, services.Wrap(services.ErrDataQuality, "transcribe", "refine", "empty completion", nil)
	}

	refined, err := parseRefinement(resp.Choices[0].Message.Content)
	if err != nil {
		return segments, err
	}

	byIndex := make(map[int]string, len(refined))
	for _, r := range refined {
		byIndex[r.Index] = strings.TrimSpace(r.Text)
	}

	out := make([]jobs.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		if text, ok := byIndex[out[i].Index]; ok && text != "" {
			out[i].Text = text
		}
	}
	return out, nil
}

type refinedLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func parseRefinement(content string) ([]refinedLine, error) {
	cleaned := stripCodeFence(content)
	var lines []refinedLine
	if err := json.Unmarshal([]byte(cleaned), &lines); err != nil {
		return nil, services.Wrap(services.ErrDataQuality, "transcribe", "refine", "unparseable refinement", err)
	}
	return lines, nil
}

// stripCodeFence removes a markdown fence the model sometimes wraps JSON in.
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
