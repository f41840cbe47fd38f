package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(client func() (*apiClient, error)) *cobra.Command {
	var orgID string
	var tier string
	var maxDuration float64
	var minDuration float64
	var minScore float64

	cmd := &cobra.Command{
		Use:   "submit <video-id>",
		Short: "Submit a video for clip generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(orgID) == "" {
				return fmt.Errorf("--org is required")
			}

			configuration := map[string]any{}
			if maxDuration > 0 {
				configuration["max_clip_duration"] = maxDuration
			}
			if minDuration > 0 {
				configuration["min_clip_duration"] = minDuration
			}
			if minScore > 0 {
				configuration["min_score"] = minScore
			}

			api, err := client()
			if err != nil {
				return err
			}
			job, err := api.SubmitJob(cmd.Context(), submitRequest{
				VideoID:       args[0],
				OrgID:         orgID,
				Tier:          tier,
				Configuration: configuration,
			})
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s queued for video %s\n", job.ID, job.VideoID)
			fmt.Fprintf(out, "Follow progress with: clipforge status %s --follow\n", job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&orgID, "org", "o", "", "Organization identifier")
	cmd.Flags().StringVarP(&tier, "tier", "t", "", "Plan tier (starter or business)")
	cmd.Flags().Float64Var(&maxDuration, "max-duration", 0, "Maximum clip duration in seconds")
	cmd.Flags().Float64Var(&minDuration, "min-duration", 0, "Minimum clip duration in seconds")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum candidate score (0-100)")
	return cmd
}
