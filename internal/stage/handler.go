package stage

import (
	"context"

	"clipforge/internal/jobs"
)

// Handler executes one pipeline stage for one job. Implementations must be
// idempotent: a crashed worker's task is redelivered and the stage runs
// again.
type Handler interface {
	// Name is the stage identifier used for queues and retry policies.
	Name() string
	// Status is the job status while this stage is running.
	Status() jobs.Status
	// Execute performs the stage work. State handed to later stages goes
	// through the store, not the in-memory job.
	Execute(ctx context.Context, job *jobs.Job) error
}

// checkpoints is the progress value a job shows while each stage runs.
var checkpoints = map[string]int{
	"ingest":     2,
	"download":   10,
	"normalize":  25,
	"transcribe": 35,
	"analyze":    40,
	"classify":   45,
	"select":     55,
	"reframe":    70,
	"score":      75,
	"caption":    80,
	"clip":       85,
	"post":       95,
}

// Checkpoint returns the progress value for a running stage.
func Checkpoint(stage string) int {
	if v, ok := checkpoints[stage]; ok {
		return v
	}
	return 0
}
