package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mp4forge/internal/api"
	"mp4forge/internal/apiclient"
	"mp4forge/internal/services"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage mux jobs",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueStartCommand(ctx))
	queueCmd.AddCommand(newQueueStopCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.QueueStatus(cmd.Context())
				if err != nil {
					return err
				}
				printQueueSummary(cmd, status)
				return nil
			})
		},
	}
}

func printQueueSummary(cmd *cobra.Command, status api.QueueStatus) {
	out := cmd.OutOrStdout()
	state := "idle"
	if status.Running {
		state = "running"
		if status.CurrentJob != "" {
			state = fmt.Sprintf("running (job %s)", shortID(status.CurrentJob))
		}
	}
	fmt.Fprintf(out, "Processor: %s\n", state)
	fmt.Fprintf(out, "Queued: %d of %d jobs\n", status.QueuedCount, status.TotalCount)
	rows := buildQueueStatusRows(status.Counts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mux jobs in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				jobs, err := client.ListJobs(cmd.Context(), status)
				if err != nil {
					return err
				}
				switch format {
				case formatJSON:
					return writeJSON(cmd, jobs)
				case formatYAML:
					return writeYAML(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Output", "Status", "Progress", "Audio/Subs", "Created"},
					buildJobListRows(jobs, time.Now(), shouldColorize(out)),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only list jobs with this status (queued, processing, completed, failed, cancelled)")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				id, err := resolveJobID(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				job, err := client.GetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				switch format {
				case formatJSON:
					return writeJSON(cmd, job)
				case formatYAML:
					return writeYAML(cmd, job)
				}
				printJobDetail(cmd, job)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func printJobDetail(cmd *cobra.Command, job api.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", colorForJobStatus(job.Status), formatProgress(job), colorize))
	fmt.Fprintln(out, renderValueLine("Output", job.OutputFile))
	fmt.Fprintln(out, renderValueLine("Created", formatDisplayTime(job.CreatedAt)))
	if job.StartedAt != "" {
		fmt.Fprintln(out, renderValueLine("Started", formatDisplayTime(job.StartedAt)))
	}
	if job.CompletedAt != "" {
		fmt.Fprintln(out, renderValueLine("Finished", formatDisplayTime(job.CompletedAt)))
	}
	if job.Video != nil {
		fmt.Fprintln(out, renderValueLine("Video", describeTrack(*job.Video)))
	}
	for i, t := range job.AudioTracks {
		fmt.Fprintln(out, renderValueLine(fmt.Sprintf("Audio %d", i+1), describeTrack(t)))
	}
	for i, t := range job.SubtitleTracks {
		fmt.Fprintln(out, renderValueLine(fmt.Sprintf("Subtitle %d", i+1), describeTrack(t)))
	}
	if job.Chapters != "" {
		fmt.Fprintln(out, renderValueLine("Chapters", fmt.Sprintf("%d lines", len(strings.Split(strings.TrimSpace(job.Chapters), "\n")))))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderValueLine("Error", ""))
		for _, line := range strings.Split(strings.TrimSpace(job.ErrorMessage), "\n") {
			fmt.Fprintf(out, "%s%s%s\n", statusIndent, statusIndent, line)
		}
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				id, err := resolveJobID(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				before, err := client.GetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				job, err := client.CancelJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				if finishedStatus(before.Status) {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s already %s; nothing to cancel\n", shortID(job.ID), job.Status)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s (%s)\n", shortID(job.ID), job.OutputFile)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a job, cancelling it first if it is muxing",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				id, err := resolveJobID(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				if err := client.RemoveJob(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", shortID(id))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed, failed, and cancelled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				removed, err := client.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", removed)
				return nil
			})
		},
	}
}

func newQueueStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start processing queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.StartProcessing(cmd.Context())
				if err != nil {
					if errors.Is(err, services.ErrConflict) {
						fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do: no jobs queued")
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processing started (%d queued)\n", status.QueuedCount)
				return nil
			})
		},
	}
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop processing; the current job returns to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.StopProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processing stopped (%d queued)\n", status.QueuedCount)
				return nil
			})
		},
	}
}

// resolveJobID accepts a full id or a unique prefix, such as the short ids
// printed by queue list.
func resolveJobID(ctx context.Context, client *apiclient.Client, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("job id is required")
	}
	jobs, err := client.ListJobs(ctx, "")
	if err != nil {
		return "", err
	}
	var matches []string
	for _, job := range jobs {
		if job.ID == value {
			return value, nil
		}
		if strings.HasPrefix(job.ID, value) {
			matches = append(matches, job.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("job %q not found", value)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("job id %q is ambiguous (%d matches)", value, len(matches))
	}
}
