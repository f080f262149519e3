package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "job_id, video_state, audio_tracks, subtitle_tracks, chapters, output_file, status, error_message, created_at, started_at, completed_at, queue_position"

// jobRow is the serialized form of a Job.
type jobRow struct {
	id           string
	video        string
	audio        string
	subtitles    string
	chapters     sql.NullString
	outputFile   string
	status       string
	errorMessage sql.NullString
	createdAt    string
	startedAt    sql.NullString
	completedAt  sql.NullString
	position     int
}

func encodeJob(job *Job, position int) (jobRow, error) {
	video, err := json.Marshal(job.Video)
	if err != nil {
		return jobRow{}, fmt.Errorf("encode video: %w", err)
	}
	audio, err := marshalTracks(job.AudioTracks)
	if err != nil {
		return jobRow{}, fmt.Errorf("encode audio tracks: %w", err)
	}
	subtitles, err := marshalTracks(job.SubtitleTracks)
	if err != nil {
		return jobRow{}, fmt.Errorf("encode subtitle tracks: %w", err)
	}
	row := jobRow{
		id:           job.ID,
		video:        string(video),
		audio:        audio,
		subtitles:    subtitles,
		outputFile:   job.OutputFile,
		status:       string(job.Status),
		errorMessage: nullableString(job.ErrorMessage),
		createdAt:    formatTime(job.CreatedAt),
		startedAt:    nullableTime(job.StartedAt),
		completedAt:  nullableTime(job.CompletedAt),
		position:     position,
	}
	if job.Chapters != nil {
		chapters, err := json.Marshal(job.Chapters)
		if err != nil {
			return jobRow{}, fmt.Errorf("encode chapters: %w", err)
		}
		row.chapters = sql.NullString{String: string(chapters), Valid: true}
	}
	return row, nil
}

func marshalTracks(tracks []Track) (string, error) {
	if tracks == nil {
		tracks = []Track{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, int, error) {
	var row jobRow
	if err := scanner.Scan(
		&row.id,
		&row.video,
		&row.audio,
		&row.subtitles,
		&row.chapters,
		&row.outputFile,
		&row.status,
		&row.errorMessage,
		&row.createdAt,
		&row.startedAt,
		&row.completedAt,
		&row.position,
	); err != nil {
		return nil, 0, err
	}
	job, err := row.decode()
	if err != nil {
		return nil, 0, fmt.Errorf("decode job %s: %w", row.id, err)
	}
	return job, row.position, nil
}

func (r jobRow) decode() (*Job, error) {
	status, ok := ParseStatus(r.status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", r.status)
	}
	job := &Job{
		ID:           r.id,
		OutputFile:   r.outputFile,
		Status:       status,
		ErrorMessage: r.errorMessage.String,
	}
	if err := json.Unmarshal([]byte(r.video), &job.Video); err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	if err := json.Unmarshal([]byte(r.audio), &job.AudioTracks); err != nil {
		return nil, fmt.Errorf("audio tracks: %w", err)
	}
	if err := json.Unmarshal([]byte(r.subtitles), &job.SubtitleTracks); err != nil {
		return nil, fmt.Errorf("subtitle tracks: %w", err)
	}
	if r.chapters.Valid && r.chapters.String != "" {
		var chapters Chapters
		if err := json.Unmarshal([]byte(r.chapters.String), &chapters); err != nil {
			return nil, fmt.Errorf("chapters: %w", err)
		}
		job.Chapters = &chapters
	}
	created, err := parseTimeString(r.createdAt)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	job.CreatedAt = created
	if r.startedAt.Valid {
		if started, err := parseTimeString(r.startedAt.String); err == nil {
			job.StartedAt = &started
		}
	}
	if r.completedAt.Valid {
		if completed, err := parseTimeString(r.completedAt.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func terminalStatusArgs() []any {
	args := make([]any, 0, len(allStatuses))
	for _, status := range allStatuses {
		if status.IsTerminal() {
			args = append(args, string(status))
		}
	}
	return args
}
