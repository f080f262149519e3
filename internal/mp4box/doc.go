// Package mp4box drives the external MP4Box executable for a single mux job.
//
// BuildArgs turns a queue.Job into an MP4Box command line, ProgressTracker
// converts MP4Box's per-stage gauges into overall job progress, and Executor
// runs the process, reports status and progress back to the queue, and
// terminates the whole process tree when a job is cancelled.
package mp4box
