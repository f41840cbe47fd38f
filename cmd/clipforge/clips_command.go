package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newClipsCommand(client func() (*apiClient, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "clips <video-id>",
		Short: "List generated clips for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := client()
			if err != nil {
				return err
			}
			clips, err := api.ListClips(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(clips) == 0 {
				fmt.Fprintf(out, "No clips for video %s\n", args[0])
				return nil
			}
			fmt.Fprintln(out, renderClipTable(clips))
			return nil
		},
	}
}

// renderClipTable lays out the clip listing with rank and score
// right-aligned so the numeric columns read as a ranking.
func renderClipTable(clips []clipView) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Rank", "Title", "Span", "Score", "Artifact"})
	for _, clip := range clips {
		tw.AppendRow(table.Row{
			clip.Rank,
			clip.Title,
			formatSpan(clip.Start, clip.End),
			fmt.Sprintf("%.1f", clip.Score),
			clip.ArtifactPath,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatSpan(start, end float64) string {
	return fmt.Sprintf("%s - %s", formatSeconds(start), formatSeconds(end))
}

func formatSeconds(s float64) string {
	total := int(s)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
