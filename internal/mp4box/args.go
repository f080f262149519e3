package mp4box

import (
	"strconv"
	"strings"

	"mp4forge/internal/language"
	"mp4forge/internal/queue"
)

// forcedSubtitleFlags marks a text track as forced (all samples forced plus
// the "some samples forced" bit).
const forcedSubtitleFlags = "0xC0000000"

// BuildArgs returns the MP4Box arguments for job. chaptersPath is the
// materialized chapters file, or empty when the job carries none.
func BuildArgs(job *queue.Job, chaptersPath string) []string {
	args := []string{"-new"}
	if job == nil {
		return args
	}

	if job.Video != nil {
		args = append(args, "-add", job.Video.InputFile+"#video"+trackOptions(*job.Video, true))
	}

	audioDefaults := anyDefault(job.AudioTracks)
	for _, track := range job.AudioTracks {
		opts := selector(track, "audio") + trackOptions(track, true) + defaultMarker(track, audioDefaults)
		args = append(args, "-add", track.InputFile+opts)
	}

	subtitleDefaults := anyDefault(job.SubtitleTracks)
	for _, track := range job.SubtitleTracks {
		opts := selector(track, "text") + trackOptions(track, false) + defaultMarker(track, subtitleDefaults)
		if track.Forced {
			opts += ":txtflags=" + forcedSubtitleFlags
		}
		args = append(args, "-add", track.InputFile+opts)
	}

	if chaptersPath != "" {
		args = append(args, "-chap", chaptersPath)
	}

	args = append(args, "-no-iod", "-logs=all@info", job.OutputFile)
	return args
}

func selector(track queue.Track, slot string) string {
	if track.TrackID != nil {
		return "#trackID=" + strconv.Itoa(*track.TrackID)
	}
	return "#" + slot
}

func trackOptions(track queue.Track, withDelay bool) string {
	var b strings.Builder
	if lang := mp4boxLanguage(track.Language); lang != "" {
		b.WriteString(":lang=")
		b.WriteString(lang)
	}
	b.WriteString(":name=")
	b.WriteString(track.Title)
	if withDelay && track.DelayMS != 0 {
		b.WriteString(":delay=")
		b.WriteString(strconv.Itoa(track.DelayMS))
	}
	return b.String()
}

// defaultMarker returns an explicit default flag for every track in a group
// once any track in that group is marked default. Otherwise MP4Box keeps its
// own default selection.
func defaultMarker(track queue.Track, groupHasDefault bool) string {
	if !groupHasDefault {
		return ""
	}
	if track.Default {
		return ":default=yes"
	}
	return ":default=no"
}

func anyDefault(tracks []queue.Track) bool {
	for _, track := range tracks {
		if track.Default {
			return true
		}
	}
	return false
}

func mp4boxLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if normalized, err := language.Normalize(code); err == nil {
		return normalized
	}
	return strings.ToLower(code)
}
