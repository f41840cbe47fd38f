package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlanTier determines queue priority for an organization's jobs.
type PlanTier string

const (
	TierStarter  PlanTier = "starter"
	TierBusiness PlanTier = "business"
)

// Valid reports whether the tier is recognized.
func (t PlanTier) Valid() bool {
	return t == TierStarter || t == TierBusiness
}

// Job is a single video processing run through the pipeline.
type Job struct {
	ID                 string
	VideoID            string
	OrgID              string
	Tier               PlanTier
	Status             Status
	CurrentStep        string
	LastSuccessfulStep string
	Progress           int
	Configuration      map[string]any
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewJob builds a pending job with a fresh identifier.
func NewJob(videoID, orgID string, tier PlanTier, configuration map[string]any) *Job {
	now := time.Now().UTC()
	if configuration == nil {
		configuration = map[string]any{}
	}
	return &Job{
		ID:            uuid.NewString(),
		VideoID:       videoID,
		OrgID:         orgID,
		Tier:          tier,
		Status:        StatusPending,
		Configuration: configuration,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ConfigFloat reads a numeric value from the per-job configuration,
// accepting either of two keys. JSON round-trips store numbers as float64;
// integer literals from direct construction are handled too.
func (j *Job) ConfigFloat(keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := j.Configuration[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Word is a single word with timing inside a transcript segment.
// Confidence is the engine's per-word recognition score on [0, 1].
type Word struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Segment is a timed span of transcript text.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the speech-to-text output for a video. StoragePath points
// at the JSON artifact in the library; Confidence is the mean word
// confidence across all segments.
type Transcript struct {
	VideoID     string    `json:"video_id"`
	Language    string    `json:"language"`
	Text        string    `json:"text"`
	Segments    []Segment `json:"segments"`
	Refined     bool      `json:"refined"`
	Confidence  float64   `json:"confidence"`
	StoragePath string    `json:"storage_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SelectedClip is a clip candidate the selection engine accepted, persisted
// for the downstream rendering stages.
type SelectedClip struct {
	ID           string  `json:"id"`
	VideoID      string  `json:"video_id"`
	JobID        string  `json:"job_id"`
	Rank         int     `json:"rank"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Score        float64 `json:"score"`
	Title        string  `json:"title"`
	Reason       string  `json:"reason,omitempty"`
	ArtifactPath string  `json:"artifact_path,omitempty"`
}

// Duration returns the clip length in seconds.
func (c SelectedClip) Duration() float64 {
	return c.End - c.Start
}
