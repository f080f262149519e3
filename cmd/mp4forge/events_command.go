package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mp4forge/internal/apiclient"
	"mp4forge/internal/events"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var jobID string
	var since uint64
	var untilDone bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow queue events from the daemon",
		Long: `Follow queue events as the daemon publishes them.

With --job only events for that job are shown. --until-done exits once the
job (or, without --job, the whole queue) finishes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				query := apiclient.EventQuery{Since: since}
				if jobID != "" {
					id, err := resolveJobID(cmd.Context(), client, jobID)
					if err != nil {
						return err
					}
					query.JobID = id
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				return client.Events(cmd.Context(), query, func(evt events.Event) error {
					printEvent(out, evt, colorize)
					if untilDone && eventEndsFollow(evt, query.JobID) {
						return apiclient.ErrStop
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&jobID, "job", "j", "", "Only show events for this job id (or unique prefix)")
	cmd.Flags().Uint64Var(&since, "since", 0, "Replay buffered events after this sequence number")
	cmd.Flags().BoolVar(&untilDone, "until-done", false, "Exit when the job or queue finishes")
	return cmd
}

func eventEndsFollow(evt events.Event, jobID string) bool {
	if jobID == "" {
		return evt.Type == events.TypeQueueCompleted
	}
	if evt.Type != events.TypeJobStatus || evt.JobID != jobID {
		return false
	}
	return finishedStatus(evt.Status)
}

// finishedStatus reports whether status is one a job never leaves.
func finishedStatus(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

func printEvent(out io.Writer, evt events.Event, colorize bool) {
	ts := evt.Timestamp.Local().Format("15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %-15s", ts, evt.Sequence, evt.Type)
	if evt.JobID != "" {
		fmt.Fprintf(&b, " %s", shortID(evt.JobID))
	}
	switch evt.Type {
	case events.TypeJobAdded:
		fmt.Fprintf(&b, " %s", evt.OutputFile)
	case events.TypeJobStatus:
		status := formatStatusLabel(evt.Status)
		if colorize {
			status = statusKindColor(colorForJobStatus(evt.Status)) + status + ansiReset
		}
		fmt.Fprintf(&b, " %s", status)
		if evt.Error != "" {
			fmt.Fprintf(&b, ": %s", firstLine(evt.Error))
		}
	case events.TypeJobProgress:
		fmt.Fprintf(&b, " %5.1f%%", evt.Progress)
		if evt.Stage != "" {
			fmt.Fprintf(&b, " %s", evt.Stage)
		}
	}
	fmt.Fprintln(out, b.String())
}
