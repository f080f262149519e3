package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mp4forge/internal/api"
	"mp4forge/internal/apiclient"
)

type addJobFlags struct {
	video      string
	videoLang  string
	videoTitle string
	videoDelay int
	audio      []string
	subtitles  []string
	chapters   string
	output     string
	fromFile   string
	format     string
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var flags addJobFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a mux job",
		Long: `Submit a mux job to the daemon.

Audio and subtitle tracks take a path followed by comma separated options:
  --audio "movie.ac3,lang=ger,title=Surround,delay=-120,default,trackid=2"
  --subtitle "forced.srt,lang=eng,forced"

Alternatively describe the whole job in a YAML or JSON file with --from-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(flags.format); err != nil {
				return err
			}
			req, err := flags.request()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.AddJob(cmd.Context(), req)
				if err != nil {
					return err
				}
				switch flags.format {
				case formatJSON:
					return writeJSON(cmd, job)
				case formatYAML:
					return writeYAML(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s -> %s\n", shortID(job.ID), job.OutputFile)
				return nil
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.video, "video", "", "Video input file")
	fs.StringVar(&flags.videoLang, "video-lang", "", "Video language (ISO 639 code or English name)")
	fs.StringVar(&flags.videoTitle, "video-title", "", "Video track title")
	fs.IntVar(&flags.videoDelay, "video-delay", 0, "Video delay in milliseconds")
	fs.StringArrayVar(&flags.audio, "audio", nil, "Audio track: path[,lang=][,title=][,delay=][,default][,trackid=]")
	fs.StringArrayVar(&flags.subtitles, "subtitle", nil, "Subtitle track: path[,lang=][,title=][,delay=][,default][,forced][,trackid=]")
	fs.StringVar(&flags.chapters, "chapters", "", "Chapter file in OGM format")
	fs.StringVarP(&flags.output, "output", "o", "", "Output MP4 file")
	fs.StringVar(&flags.fromFile, "from-file", "", "Read the job from a YAML or JSON file")
	fs.StringVarP(&flags.format, "format", "f", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func (f addJobFlags) request() (api.AddJobRequest, error) {
	if f.fromFile != "" {
		if f.video != "" || len(f.audio) > 0 || len(f.subtitles) > 0 || f.output != "" {
			return api.AddJobRequest{}, fmt.Errorf("--from-file cannot be combined with track flags")
		}
		return loadJobFile(f.fromFile)
	}

	var req api.AddJobRequest
	if f.video != "" {
		path, err := absPath(f.video)
		if err != nil {
			return req, err
		}
		req.Video = &api.TrackInput{
			InputFile: path,
			Language:  f.videoLang,
			Title:     f.videoTitle,
			DelayMS:   f.videoDelay,
		}
	}
	for _, spec := range f.audio {
		track, err := parseTrackFlag(spec)
		if err != nil {
			return req, fmt.Errorf("--audio %q: %w", spec, err)
		}
		req.AudioTracks = append(req.AudioTracks, track)
	}
	for _, spec := range f.subtitles {
		track, err := parseTrackFlag(spec)
		if err != nil {
			return req, fmt.Errorf("--subtitle %q: %w", spec, err)
		}
		req.SubtitleTracks = append(req.SubtitleTracks, track)
	}
	if f.chapters != "" {
		data, err := os.ReadFile(f.chapters)
		if err != nil {
			return req, fmt.Errorf("read chapters: %w", err)
		}
		req.Chapters = string(data)
	}
	if f.output != "" {
		path, err := absPath(f.output)
		if err != nil {
			return req, err
		}
		req.OutputFile = path
	}
	return req, nil
}

// parseTrackFlag reads "path,key=value,flag" track descriptions.
func parseTrackFlag(spec string) (api.TrackInput, error) {
	parts := strings.Split(spec, ",")
	var track api.TrackInput
	path := strings.TrimSpace(parts[0])
	if path == "" {
		return track, fmt.Errorf("input file is required")
	}
	abs, err := absPath(path)
	if err != nil {
		return track, err
	}
	track.InputFile = abs

	for _, part := range parts[1:] {
		key, value, hasValue := strings.Cut(strings.TrimSpace(part), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch {
		case key == "":
			continue
		case key == "default" && !hasValue:
			track.Default = true
		case key == "forced" && !hasValue:
			track.Forced = true
		case key == "lang" || key == "language":
			track.Language = value
		case key == "title":
			track.Title = value
		case key == "delay":
			delay, err := strconv.Atoi(value)
			if err != nil {
				return track, fmt.Errorf("delay must be whole milliseconds, got %q", value)
			}
			track.DelayMS = delay
		case key == "trackid":
			id, err := strconv.Atoi(value)
			if err != nil {
				return track, fmt.Errorf("trackid must be a number, got %q", value)
			}
			track.TrackID = &id
		default:
			return track, fmt.Errorf("unknown option %q", part)
		}
	}
	return track, nil
}

// loadJobFile decodes a job description. YAML is a superset of JSON, so one
// decoder handles both; the result is re-encoded as JSON to reuse the API
// field names.
func loadJobFile(path string) (api.AddJobRequest, error) {
	var req api.AddJobRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read job file: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return req, fmt.Errorf("parse job file: %w", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return req, fmt.Errorf("parse job file: %w", err)
	}
	if err := json.Unmarshal(encoded, &req); err != nil {
		return req, fmt.Errorf("parse job file: %w", err)
	}
	return req, nil
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}
