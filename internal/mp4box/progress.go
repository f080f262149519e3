package mp4box

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// Progress is one overall progress reading for a job.
type Progress struct {
	Percent float64
	Stage   string
}

// MP4Box prints a 0-100 gauge per stage, e.g.
// "Importing AAC: |=====               | (25/100)".
var stagePattern = regexp.MustCompile(`(Video import|Importing|ISO File Writing)[^(]*\((\d+)/(\d+)\)`)

// ProgressTracker folds MP4Box's per-stage gauges into overall job progress.
// MP4Box never announces stage boundaries, so a gauge dropping back to the
// start after reaching the end is taken as the next operation starting.
type ProgressTracker struct {
	audio     int
	subtitles int
	total     int
	op        int
	lastPct   float64
}

// NewProgressTracker sizes a tracker for one video import, the given audio
// and subtitle imports, and the final write.
func NewProgressTracker(audioTracks, subtitleTracks int) *ProgressTracker {
	audioTracks = max(audioTracks, 0)
	subtitleTracks = max(subtitleTracks, 0)
	return &ProgressTracker{
		audio:     audioTracks,
		subtitles: subtitleTracks,
		total:     1 + audioTracks + subtitleTracks + 1,
	}
}

// TotalOperations reports how many gauges the tracker expects.
func (t *ProgressTracker) TotalOperations() int {
	return t.total
}

// Feed parses one output line. It reports false for lines without a stage
// gauge.
func (t *ProgressTracker) Feed(line string) (Progress, bool) {
	match := stagePattern.FindStringSubmatch(line)
	if match == nil {
		return Progress{}, false
	}
	current, err := strconv.Atoi(match[2])
	if err != nil {
		return Progress{}, false
	}
	limit, err := strconv.Atoi(match[3])
	if err != nil || limit <= 0 {
		return Progress{}, false
	}
	pct := min(max(float64(current)*100/float64(limit), 0), 100)

	if pct <= 5 && t.lastPct >= 95 && t.op < t.total-1 {
		t.op++
	}
	t.lastPct = pct

	share := 100 / float64(t.total)
	overall := min(float64(t.op)*share+pct*share/100, 100)
	return Progress{Percent: overall, Stage: t.stage()}, true
}

func (t *ProgressTracker) stage() string {
	switch {
	case t.op == 0:
		return "Importing video"
	case t.op <= t.audio:
		return fmt.Sprintf("Importing audio %d", t.op)
	case t.op <= t.audio+t.subtitles:
		return fmt.Sprintf("Importing subtitle %d", t.op-t.audio)
	default:
		return "Writing output"
	}
}

// scanOutputLines splits on '\n' and '\r' since MP4Box redraws its gauge in
// place with carriage returns.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
