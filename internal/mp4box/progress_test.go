package mp4box_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp4forge/internal/mp4box"
)

func TestProgressTrackerHitsOperationBoundaries(t *testing.T) {
	tracker := mp4box.NewProgressTracker(2, 1)
	require.Equal(t, 5, tracker.TotalOperations())

	stages := []struct {
		marker string
		label  string
	}{
		{"Video import", "Importing video"},
		{"Importing AAC", "Importing audio 1"},
		{"Importing AC3", "Importing audio 2"},
		{"Importing SRT", "Importing subtitle 1"},
		{"ISO File Writing", "Writing output"},
	}

	last := -1.0
	for op, stage := range stages {
		for pct := 0; pct <= 100; pct += 10 {
			line := fmt.Sprintf("%s: |=====     | (%d/100)", stage.marker, pct)
			progress, ok := tracker.Feed(line)
			require.True(t, ok, line)
			assert.GreaterOrEqual(t, progress.Percent, last, line)
			assert.Equal(t, stage.label, progress.Stage, line)
			if pct == 0 {
				assert.InDelta(t, float64(op*20), progress.Percent, 1e-9, line)
			}
			last = progress.Percent
		}
	}
	assert.InDelta(t, 100.0, last, 1e-9)
}

func TestProgressTrackerCapsOperationCount(t *testing.T) {
	tracker := mp4box.NewProgressTracker(0, 0)

	for range 4 {
		_, ok := tracker.Feed("ISO File Writing (100/100)")
		require.True(t, ok)
		progress, ok := tracker.Feed("ISO File Writing (0/100)")
		require.True(t, ok)
		assert.Equal(t, "Writing output", progress.Stage)
		assert.InDelta(t, 50.0, progress.Percent, 1e-9)
	}
}

func TestProgressTrackerIgnoresMalformedLines(t *testing.T) {
	tracker := mp4box.NewProgressTracker(1, 0)

	for _, line := range []string{
		"",
		"Saving to /out/x.mp4",
		"Importing AAC (abc/100)",
		"Importing AAC (5/0)",
		"(50/100)",
	} {
		_, ok := tracker.Feed(line)
		assert.False(t, ok, line)
	}

	progress, ok := tracker.Feed("Importing ISO File: |==   | (150/100)")
	require.True(t, ok)
	assert.InDelta(t, 100.0/3, progress.Percent, 1e-9)
}
