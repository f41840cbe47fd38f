// Package embed indexes transcript segments in weaviate and classifies
// video content against stored category exemplars.
package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"clipforge/internal/jobs"
	"clipforge/internal/services"
)

const (
	segmentClass  = "ClipSegment"
	categoryClass = "ContentCategory"

	// DefaultCategory is used when the index holds no exemplars yet.
	DefaultCategory = "general"
)

// Service wraps the weaviate client.
type Service struct {
	client *weaviate.Client
}

// New connects to a weaviate instance. The OpenAI key feeds the
// text2vec-openai vectorizer module.
func New(scheme, host, weaviateAPIKey, openaiAPIKey string) (*Service, error) {
	config := weaviate.Config{
		Scheme:     scheme,
		Host:       host,
		AuthConfig: auth.ApiKey{Value: weaviateAPIKey},
		Headers: map[string]string{
			"X-OpenAI-Api-Key": openaiAPIKey,
		},
	}
	client, err := weaviate.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("build weaviate client: %w", err)
	}
	return &Service{client: client}, nil
}

// EnsureSchema creates the segment class when missing. The category class
// is seeded externally and only read here.
func (s *Service) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(segmentClass).Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", segmentClass, err)
	}
	if exists {
		return nil
	}

	classObj := &models.Class{
		Class:      segmentClass,
		Vectorizer: "text2vec-openai",
		ModuleConfig: map[string]any{
			"text2vec-openai": map[string]any{
				"model": "ada",
				"type":  "text",
			},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		// Racing creators both pass the existence check; one loses here.
		if status, ok := err.(*fault.WeaviateClientError); ok && status.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return fmt.Errorf("create class %s: %w", segmentClass, err)
	}
	return nil
}

// IndexSegments stores transcript segments for a video so later semantic
// queries can reach into its content.
func (s *Service) IndexSegments(ctx context.Context, videoID string, segments []jobs.Segment) error {
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		_, err := s.client.Data().Creator().
			WithClassName(segmentClass).
			WithID(segmentID(videoID, seg.Index)).
			WithProperties(map[string]any{
				"videoId": videoID,
				"index":   seg.Index,
				"start":   seg.Start,
				"end":     seg.End,
				"text":    seg.Text,
			}).
			Do(ctx)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "classify", "index segment",
				fmt.Sprintf("segment %d of video %s", seg.Index, videoID), err)
		}
	}
	return nil
}

// Classify finds the stored category nearest to the given text. An empty
// category index yields the default instead of an error.
func (s *Service) Classify(ctx context.Context, text string) (string, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{text})

	result, err := s.client.GraphQL().Get().
		WithClassName(categoryClass).
		WithFields(graphql.Field{Name: "name"}).
		WithNearText(nearText).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "classify", "near text query", "", err)
	}
	if len(result.Errors) > 0 {
		return "", services.Wrap(services.ErrExternalTool, "classify", "near text query",
			result.Errors[0].Message, nil)
	}

	name := extractCategory(result.Data)
	if name == "" {
		return DefaultCategory, nil
	}
	return name, nil
}

func extractCategory(data map[string]models.JSONObject) string {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return ""
	}
	items, ok := get[categoryClass].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := first["name"].(string)
	return name
}

// segmentID derives a stable object id so re-runs update instead of
// duplicating.
func segmentID(videoID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", videoID, index))).String()
}
