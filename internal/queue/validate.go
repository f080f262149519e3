package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mp4forge/internal/language"
	"mp4forge/internal/services"
)

// MaxDelay bounds the absolute track delay accepted on submission.
const MaxDelay = time.Hour

// Validate checks a submitted job: video and output paths are required, every
// track needs an input file, delays stay within MaxDelay, track ids are not
// negative, and languages must be recognizable. All problems are reported
// together, wrapped with services.ErrValidation.
func (j *Job) Validate() error {
	if j == nil {
		return services.Wrap(services.ErrValidation, "queue", "validate job", "job is empty", nil)
	}
	var problems []error
	if j.Video == nil || strings.TrimSpace(j.Video.InputFile) == "" {
		problems = append(problems, errors.New("video input file is required"))
	} else {
		problems = append(problems, validateTrack("video", *j.Video, true)...)
	}
	if strings.TrimSpace(j.OutputFile) == "" {
		problems = append(problems, errors.New("output file is required"))
	}
	for i, t := range j.AudioTracks {
		problems = append(problems, validateTrack(fmt.Sprintf("audio track %d", i+1), t, false)...)
	}
	for i, t := range j.SubtitleTracks {
		problems = append(problems, validateTrack(fmt.Sprintf("subtitle track %d", i+1), t, false)...)
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "queue", "validate job", "invalid job", errors.Join(problems...))
}

func validateTrack(label string, t Track, skipFile bool) []error {
	var problems []error
	if !skipFile && strings.TrimSpace(t.InputFile) == "" {
		problems = append(problems, fmt.Errorf("%s: input file is required", label))
	}
	if delay := time.Duration(t.DelayMS) * time.Millisecond; delay > MaxDelay || delay < -MaxDelay {
		problems = append(problems, fmt.Errorf("%s: delay %dms exceeds %s", label, t.DelayMS, MaxDelay))
	}
	if t.TrackID != nil && *t.TrackID < 0 {
		problems = append(problems, fmt.Errorf("%s: track id must not be negative", label))
	}
	if _, err := language.Normalize(t.Language); err != nil {
		problems = append(problems, fmt.Errorf("%s: %w", label, err))
	}
	return problems
}

// NormalizeLanguages rewrites every track language to its ISO 639-2/T code.
// Unrecognized codes are left as given; Validate reports them.
func (j *Job) NormalizeLanguages() {
	if j == nil {
		return
	}
	if j.Video != nil {
		j.Video.Language = normalizeLanguage(j.Video.Language)
	}
	for i := range j.AudioTracks {
		j.AudioTracks[i].Language = normalizeLanguage(j.AudioTracks[i].Language)
	}
	for i := range j.SubtitleTracks {
		j.SubtitleTracks[i].Language = normalizeLanguage(j.SubtitleTracks[i].Language)
	}
}

func normalizeLanguage(code string) string {
	if normalized, err := language.Normalize(code); err == nil {
		return normalized
	}
	return strings.TrimSpace(code)
}
