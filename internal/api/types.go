package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TrackInput describes one submitted track.
type TrackInput struct {
	InputFile string `json:"inputFile"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	DelayMS   int    `json:"delayMs,omitempty"`
	Default   bool   `json:"default,omitempty"`
	Forced    bool   `json:"forced,omitempty"`
	TrackID   *int   `json:"trackId,omitempty"`
}

// AddJobRequest is the job submission payload.
type AddJobRequest struct {
	Video          *TrackInput  `json:"video"`
	AudioTracks    []TrackInput `json:"audioTracks,omitempty"`
	SubtitleTracks []TrackInput `json:"subtitleTracks,omitempty"`
	Chapters       string       `json:"chapters,omitempty"`
	OutputFile     string       `json:"outputFile"`
}

// Track is a track as reported back to clients.
type Track struct {
	TrackInput
	LanguageName string `json:"languageName,omitempty"`
}

// JobProgress captures transient mux progress.
type JobProgress struct {
	Percent float64 `json:"percent"`
	Stage   string  `json:"stage,omitempty"`
}

// Job describes a queue job in a transport-friendly format.
type Job struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	Progress       JobProgress `json:"progress"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	Video          *Track      `json:"video,omitempty"`
	AudioTracks    []Track     `json:"audioTracks"`
	SubtitleTracks []Track     `json:"subtitleTracks"`
	Chapters       string      `json:"chapters,omitempty"`
	OutputFile     string      `json:"outputFile"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	StartedAt      string      `json:"startedAt,omitempty"`
	CompletedAt    string      `json:"completedAt,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ClearResponse reports how many finished jobs were removed.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// QueueStatus summarizes the queue and whether it is being processed.
type QueueStatus struct {
	Running     bool           `json:"running"`
	QueuedCount int            `json:"queuedCount"`
	TotalCount  int            `json:"totalCount"`
	CurrentJob  string         `json:"currentJob,omitempty"`
	Counts      map[string]int `json:"counts"`
}

// ProcessorStatus summarizes the processing loop.
type ProcessorStatus struct {
	Running    bool   `json:"running"`
	CurrentJob string `json:"currentJob,omitempty"`
	LastJob    *Job   `json:"lastJob,omitempty"`
	LastError  string `json:"lastError,omitempty"`
	LastOutput string `json:"lastOutput,omitempty"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DatabaseHealth reports the queue database state.
type DatabaseHealth struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	Readable      bool   `json:"readable"`
	SchemaVersion int    `json:"schemaVersion"`
	SchemaCurrent bool   `json:"schemaCurrent"`
	Integrity     bool   `json:"integrity"`
	TotalJobs     int    `json:"totalJobs"`
	Error         string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Version      string             `json:"version,omitempty"`
	Bind         string             `json:"bind"`
	StartedAt    string             `json:"startedAt,omitempty"`
	LockFilePath string             `json:"lockFilePath"`
	ConfigPath   string             `json:"configPath,omitempty"`
	Queue        QueueStatus        `json:"queue"`
	Processor    ProcessorStatus    `json:"processor"`
	ActiveMuxes  []string           `json:"activeMuxes"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Database     *DatabaseHealth    `json:"database,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
