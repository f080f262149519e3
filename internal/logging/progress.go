package logging

import "strings"

// ProgressSampler decides which mux progress updates are worth a log line:
// the first update of each stage and every crossing of a percent step.
type ProgressSampler struct {
	step   float64
	stage  string
	bucket int
}

// NewProgressSampler logs every step percent. A non-positive step means 10.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step, bucket: -1}
}

// ShouldLog reports whether percent within stage should be logged.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != s.stage {
		s.stage = stage
		s.bucket = -1
		emit = true
	}
	bucket := int(min(max(percent, 0), 100) / s.step)
	if bucket > s.bucket {
		s.bucket = bucket
		emit = true
	}
	return emit
}
