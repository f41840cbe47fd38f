package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if c.Selection.MinTargetClips > c.Selection.MaxTargetClips {
		problems = append(problems, fmt.Sprintf(
			"selection: min_target_clips (%d) exceeds max_target_clips (%d)",
			c.Selection.MinTargetClips, c.Selection.MaxTargetClips))
	}
	if c.Selection.OverlapThreshold < 0 {
		problems = append(problems, "selection: overlap_threshold must not be negative")
	}
	if c.Workflow.LeaseTimeout < c.Workflow.TaskTimeLimit/10 {
		// A lease shorter than a tenth of the ceiling gets reclaimed while
		// the task is still legitimately running.
		problems = append(problems, fmt.Sprintf(
			"workflow: lease_timeout (%ds) too short for task_time_limit (%ds)",
			c.Workflow.LeaseTimeout, c.Workflow.TaskTimeLimit))
	}
	if c.Embeddings.Enabled && strings.TrimSpace(c.Embeddings.Host) == "" {
		problems = append(problems, "embeddings: host required when enabled")
	}
	if c.LLM.RefineEnabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		problems = append(problems, "llm: api_key required when refine_enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
