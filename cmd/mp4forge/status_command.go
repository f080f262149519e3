package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mp4forge/internal/api"
	"mp4forge/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				switch format {
				case formatJSON:
					return writeJSON(cmd, status)
				case formatYAML:
					return writeYAML(cmd, status)
				}
				out := cmd.OutOrStdout()
				printDaemonStatus(out, status, time.Now(), shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func printDaemonStatus(out io.Writer, status api.DaemonStatus, now time.Time, colorize bool) {
	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	section("Daemon")
	fmt.Fprintln(out, renderStatusLine("State", statusOK, "running", colorize))
	fmt.Fprintln(out, renderValueLine("PID", strconv.Itoa(status.PID)))
	if status.Version != "" {
		fmt.Fprintln(out, renderValueLine("Version", status.Version))
	}
	fmt.Fprintln(out, renderValueLine("API", status.Bind))
	if started, ok := parseAPITime(status.StartedAt); ok {
		fmt.Fprintln(out, renderValueLine("Uptime", "since "+humanize.RelTime(started, now, "ago", "from now")))
	}
	if status.ConfigPath != "" {
		fmt.Fprintln(out, renderValueLine("Config", status.ConfigPath))
	}
	fmt.Fprintln(out, renderValueLine("Lock file", status.LockFilePath))
	fmt.Fprintln(out)

	section("Queue")
	proc := status.Processor
	switch {
	case proc.Running && proc.CurrentJob != "":
		fmt.Fprintln(out, renderStatusLine("Processor", statusInfo, "muxing job "+shortID(proc.CurrentJob), colorize))
	case proc.Running:
		fmt.Fprintln(out, renderStatusLine("Processor", statusInfo, "running", colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Processor", statusWarn, "stopped", colorize))
	}
	fmt.Fprintln(out, renderValueLine("Queued", fmt.Sprintf("%d of %d jobs", status.Queue.QueuedCount, status.Queue.TotalCount)))
	fmt.Fprintln(out, renderValueLine("Finished", fmt.Sprintf("%d completed, %d failed this session", proc.Completed, proc.Failed)))
	if proc.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, firstLine(proc.LastError), colorize))
	}
	if proc.LastOutput != "" {
		fmt.Fprintln(out, renderValueLine("Last output", proc.LastOutput))
	}
	fmt.Fprintln(out)

	section("Dependencies")
	for _, dep := range status.Dependencies {
		kind := statusOK
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, dep.Detail, colorize))
	}
	fmt.Fprintln(out)

	section("Database")
	db := status.Database
	if db == nil {
		fmt.Fprintln(out, renderStatusLine("Persistence", statusWarn, "disabled (memory only)", colorize))
		return
	}
	fmt.Fprintln(out, renderValueLine("Path", db.Path))
	switch {
	case db.Error != "":
		fmt.Fprintln(out, renderStatusLine("Health", statusError, db.Error, colorize))
	case !db.Integrity || !db.SchemaCurrent:
		fmt.Fprintln(out, renderStatusLine("Health", statusWarn, fmt.Sprintf("integrity %s, schema v%d", yesNo(db.Integrity), db.SchemaVersion), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Health", statusOK, fmt.Sprintf("schema v%d", db.SchemaVersion), colorize))
	}
	fmt.Fprintln(out, renderValueLine("Stored jobs", humanize.Comma(int64(db.TotalJobs))))
}
