package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mp4forge/internal/api"
)

const shortIDLength = 8

func buildQueueStatusRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key, count := range counts {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), humanize.Comma(int64(counts[key]))})
	}
	return rows
}

func buildJobListRows(jobs []api.Job, now time.Time, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		status := formatStatusLabel(job.Status)
		if colorize {
			status = statusKindColor(colorForJobStatus(job.Status)) + status + ansiReset
		}
		rows = append(rows, []string{
			shortID(job.ID),
			filepath.Base(job.OutputFile),
			status,
			formatProgress(job),
			fmt.Sprintf("%d/%d", len(job.AudioTracks), len(job.SubtitleTracks)),
			formatRelative(job.CreatedAt, now),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

func formatProgress(job api.Job) string {
	switch job.Status {
	case "queued":
		return "-"
	case "processing":
		if job.Progress.Stage != "" {
			return fmt.Sprintf("%.0f%% %s", job.Progress.Percent, job.Progress.Stage)
		}
		return fmt.Sprintf("%.0f%%", job.Progress.Percent)
	case "failed":
		return firstLine(job.ErrorMessage)
	default:
		return fmt.Sprintf("%.0f%%", job.Progress.Percent)
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}

// formatRelative renders an API timestamp as "3 minutes ago".
func formatRelative(value string, now time.Time) string {
	parsed, ok := parseAPITime(value)
	if !ok {
		return value
	}
	return humanize.RelTime(parsed, now, "ago", "from now")
}

func formatDisplayTime(value string) string {
	parsed, ok := parseAPITime(value)
	if !ok {
		return "-"
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func parseAPITime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func describeTrack(t api.Track) string {
	parts := []string{t.InputFile}
	if t.Language != "" {
		lang := t.Language
		if t.LanguageName != "" {
			lang = fmt.Sprintf("%s (%s)", t.Language, t.LanguageName)
		}
		parts = append(parts, "lang="+lang)
	}
	if t.Title != "" {
		parts = append(parts, fmt.Sprintf("title=%q", t.Title))
	}
	if t.DelayMS != 0 {
		parts = append(parts, fmt.Sprintf("delay=%dms", t.DelayMS))
	}
	if t.TrackID != nil {
		parts = append(parts, fmt.Sprintf("track=%d", *t.TrackID))
	}
	if t.Default {
		parts = append(parts, "default")
	}
	if t.Forced {
		parts = append(parts, "forced")
	}
	return strings.Join(parts, "  ")
}
