package events

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 512

// Type names a queue event.
type Type string

const (
	TypeJobAdded       Type = "job_added"
	TypeJobStatus      Type = "job_status"
	TypeJobProgress    Type = "job_progress"
	TypeQueueCompleted Type = "queue_completed"
)

// Event is one entry in the hub.
type Event struct {
	Sequence   uint64    `json:"seq"`
	Timestamp  time.Time `json:"ts"`
	Type       Type      `json:"type"`
	JobID      string    `json:"job_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputFile string    `json:"output_file,omitempty"`
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	now      func() time.Time
}

// NewHub constructs a hub holding at most capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	h := &Hub{capacity: capacity, now: func() time.Time { return time.Now().UTC() }}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends evt and returns the stored copy with its sequence number.
func (h *Hub) Publish(evt Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now()
	}

	if n := len(h.buffer); n > 0 && evt.Type == TypeJobProgress {
		last := h.buffer[n-1]
		if last.Type == TypeJobProgress && last.JobID == evt.JobID {
			h.buffer[n-1] = evt
			h.cond.Broadcast()
			return evt
		}
	}

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	return evt
}

// Fetch returns up to limit events with a sequence greater than since, plus
// the latest sequence number. With wait set it blocks until at least one
// event is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	if wait {
		stop := context.AfterFunc(ctx, func() {
			h.mu.Lock()
			h.cond.Broadcast()
			h.mu.Unlock()
		})
		defer stop()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

// Subscribe streams events newer than since until ctx ends. The channel is
// closed when the subscription stops.
func (h *Hub) Subscribe(ctx context.Context, since uint64) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		cursor := since
		for {
			events, _, err := h.Fetch(ctx, cursor, 0, true)
			if err != nil {
				return
			}
			for _, evt := range events {
				select {
				case out <- evt:
					cursor = evt.Sequence
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	end := min(start+limit, len(h.buffer))
	if start == end {
		return nil, h.nextSeq
	}
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, h.nextSeq
}
