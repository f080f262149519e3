package mp4box_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mp4forge/internal/mp4box"
	"mp4forge/internal/queue"
	"mp4forge/internal/testsupport"
)

func TestBuildArgsBasicJob(t *testing.T) {
	job := testsupport.NewJob("/out/movie.mp4")

	args := mp4box.BuildArgs(job, "")

	assert.Equal(t, []string{
		"-new",
		"-add", "/media/in/video.h264#video:lang=eng:name=Main",
		"-add", "/media/in/audio.aac#audio:lang=eng:name=:default=yes",
		"-add", "/media/in/subs.srt#text:lang=fra:name=",
		"-no-iod", "-logs=all@info",
		"/out/movie.mp4",
	}, args)
}

func TestBuildArgsTrackOptions(t *testing.T) {
	job := &queue.Job{
		Video: &queue.Track{InputFile: "/in/v.h264", DelayMS: 40},
		AudioTracks: []queue.Track{
			{InputFile: "/in/a1.ac3", Language: "de", DelayMS: -120, TrackID: queue.IntPtr(2)},
			{InputFile: "/in/a2.aac", Title: "Commentary"},
		},
		SubtitleTracks: []queue.Track{
			{InputFile: "/in/s1.srt", Language: "en", Forced: true, Default: true},
			{InputFile: "/in/s2.mkv", TrackID: queue.IntPtr(3), DelayMS: 500},
		},
		Chapters:   &queue.Chapters{Text: "CHAPTER01=00:00:00.000"},
		OutputFile: "/out/x.mp4",
	}

	args := mp4box.BuildArgs(job, "/tmp/chapters.txt")

	assert.Equal(t, []string{
		"-new",
		"-add", "/in/v.h264#video:name=:delay=40",
		"-add", "/in/a1.ac3#trackID=2:lang=deu:name=:delay=-120",
		"-add", "/in/a2.aac#audio:name=Commentary",
		"-add", "/in/s1.srt#text:lang=eng:name=:default=yes:txtflags=0xC0000000",
		"-add", "/in/s2.mkv#trackID=3:name=:default=no",
		"-chap", "/tmp/chapters.txt",
		"-no-iod", "-logs=all@info",
		"/out/x.mp4",
	}, args)
}

func TestBuildArgsDefaultMarkersPerGroup(t *testing.T) {
	job := &queue.Job{
		Video: &queue.Track{InputFile: "/in/v.h264"},
		AudioTracks: []queue.Track{
			{InputFile: "/in/a1.aac"},
			{InputFile: "/in/a2.aac", Default: true},
		},
		SubtitleTracks: []queue.Track{
			{InputFile: "/in/s1.srt"},
		},
		OutputFile: "/out/x.mp4",
	}

	args := mp4box.BuildArgs(job, "")

	assert.Contains(t, args, "/in/a1.aac#audio:name=:default=no")
	assert.Contains(t, args, "/in/a2.aac#audio:name=:default=yes")
	assert.Contains(t, args, "/in/s1.srt#text:name=")
}

func TestBuildArgsWithoutVideo(t *testing.T) {
	job := &queue.Job{
		AudioTracks: []queue.Track{{InputFile: "/in/a.aac"}},
		OutputFile:  "/out/audio.mp4",
	}

	args := mp4box.BuildArgs(job, "")

	assert.Equal(t, []string{"-new", "-add", "/in/a.aac#audio:name=", "-no-iod", "-logs=all@info", "/out/audio.mp4"}, args)
}
