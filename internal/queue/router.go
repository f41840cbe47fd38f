package queue

import (
	"fmt"

	"clipforge/internal/jobs"
)

// Queue is a named destination with a lease priority. Higher priority tasks
// are leased first.
type Queue struct {
	Name     string
	Priority int
}

// Tier priorities. Business jobs jump the line ahead of starter jobs on
// every stage queue.
const (
	PriorityStarter  = 1
	PriorityBusiness = 10
	PriorityCron     = 5
)

// Route maps a stage and plan tier onto its queue. Unknown tiers route at
// starter priority so a bad row degrades instead of stalling.
func Route(stage string, tier jobs.PlanTier) Queue {
	priority := PriorityStarter
	if tier == jobs.TierBusiness {
		priority = PriorityBusiness
	}
	return Queue{
		Name:     fmt.Sprintf("video.%s.%s", stage, tierName(tier)),
		Priority: priority,
	}
}

// Cron returns the queue for a scheduled maintenance task.
func Cron(name string) Queue {
	return Queue{Name: "cron." + name, Priority: PriorityCron}
}

func tierName(tier jobs.PlanTier) string {
	if tier == jobs.TierBusiness {
		return string(jobs.TierBusiness)
	}
	return string(jobs.TierStarter)
}
