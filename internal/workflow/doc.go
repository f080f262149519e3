// Package workflow runs the queue: one Processor loop takes queued jobs in
// order and hands each to the muxer, one at a time.
//
// The loop exits on its own once no queued jobs remain, firing the queue's
// OnQueueCompleted notification. Stop interrupts it, kills the in-flight mux
// and puts the interrupted job back in the queue. When auto start is enabled
// the processor restarts itself whenever a job is added while idle.
//
// Whatever the muxer does, a job leaves the loop in a terminal state: errors
// and panics become failures, and a job the muxer left in processing is
// marked completed.
package workflow
