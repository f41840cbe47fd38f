package jobs

import "fmt"

// Status identifies where a job sits in the processing pipeline.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusNormalizing  Status = "normalizing"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusSelecting    Status = "selecting"
	StatusReframing    Status = "reframing"
	StatusScoring      Status = "scoring"
	StatusCaptioning   Status = "captioning"
	StatusGenerating   Status = "generating"
	StatusPosting      Status = "posting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// statusOrder is the strictly forward progression of a healthy job. Failed
// sits outside the ladder and is reachable from any non-terminal status.
var statusOrder = []Status{
	StatusPending,
	StatusDownloading,
	StatusNormalizing,
	StatusTranscribing,
	StatusAnalyzing,
	StatusSelecting,
	StatusReframing,
	StatusScoring,
	StatusCaptioning,
	StatusGenerating,
	StatusPosting,
	StatusCompleted,
}

var statusRank = func() map[Status]int {
	ranks := make(map[Status]int, len(statusOrder))
	for i, s := range statusOrder {
		ranks[s] = i
	}
	return ranks
}()

// Valid reports whether the status is one of the known pipeline states.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether a job in this status will receive no further
// transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the status that follows s on the healthy ladder. Terminal
// statuses return themselves.
func (s Status) Next() Status {
	rank, ok := statusRank[s]
	if !ok || s.IsTerminal() || rank+1 >= len(statusOrder) {
		return s
	}
	return statusOrder[rank+1]
}

// CanTransition reports whether a job may move from s to target. The ladder
// only moves forward; failed is reachable from any non-terminal status.
func (s Status) CanTransition(target Status) bool {
	if s.IsTerminal() || !target.Valid() {
		return false
	}
	if target == StatusFailed {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[target]
	return okFrom && okTo && to > from
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown job status %q", raw)
	}
	return s, nil
}
