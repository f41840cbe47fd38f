package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(client func() (*apiClient, error)) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's pipeline status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := client()
			if err != nil {
				return err
			}
			if follow {
				return followStatus(cmd, api, args[0])
			}

			job, err := api.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderJob(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream status updates until the job finishes")
	return cmd
}

func renderJob(cmd *cobra.Command, job jobView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Job %s", job.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", statusKindFor(job.Status),
		fmt.Sprintf("%s (%d%%)", job.Status, job.Progress), colorize))
	fmt.Fprintln(out, renderStatusLine("Video", statusInfo, job.VideoID, colorize))
	fmt.Fprintln(out, renderStatusLine("Organization", statusInfo, job.OrgID, colorize))
	fmt.Fprintln(out, renderStatusLine("Tier", statusInfo, job.Tier, colorize))
	if job.CurrentStep != "" {
		fmt.Fprintln(out, renderStatusLine("Current step", statusInfo, job.CurrentStep, colorize))
	}
	if job.LastSuccessfulStep != "" {
		fmt.Fprintln(out, renderStatusLine("Last completed", statusOK, job.LastSuccessfulStep, colorize))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}
}

func followStatus(cmd *cobra.Command, api *apiClient, jobID string) error {
	out := cmd.OutOrStdout()
	var last string
	err := api.StreamStatus(cmd.Context(), jobID, func(event statusEvent) bool {
		line := fmt.Sprintf("%-14s %3d%%", event.Status, event.Progress)
		if event.QueuePosition != nil {
			line += fmt.Sprintf("  (position in queue: %d)", *event.QueuePosition)
		}
		if event.Error != "" {
			line += "  " + event.Error
		}
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		return true
	})
	if err != nil {
		return err
	}

	if strings.HasPrefix(last, "failed") {
		return fmt.Errorf("job %s failed", jobID)
	}
	return nil
}

func statusKindFor(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "pending":
		return statusWarn
	default:
		return statusInfo
	}
}
