package status

import (
	"context"
	"time"
)

// Record is the ephemeral view of a job published for UI polling. It mirrors
// the durable job row but carries only the fields a progress display needs.
type Record struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	QueuePosition *int   `json:"queue_position,omitempty"`
	Error         string `json:"error,omitempty"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Store publishes job status records with a bounded lifetime. A missing key
// means the record expired or was never written; callers fall back to the
// durable store.
type Store interface {
	Set(ctx context.Context, rec Record, ttl time.Duration) error
	Get(ctx context.Context, jobID string) (Record, bool, error)
}

func key(jobID string) string {
	return "clipforge:status:" + jobID
}
