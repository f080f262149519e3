// Package events keeps a bounded, sequence-numbered history of queue events
// so clients can follow job progress over HTTP.
//
// Hub implements queue.Observer. Readers poll with Fetch (optionally
// blocking until something new arrives) or receive a channel from Subscribe.
// Consecutive progress events for the same job are folded into one entry so
// a long mux cannot push status changes out of the buffer.
package events
