package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mp4forge/internal/events"
	"mp4forge/internal/logging"
)

// handleEvents streams hub events as Server-Sent Events. Clients resume with
// ?since=<seq> or the Last-Event-ID header; ?job=<id> narrows the stream to
// one job (queue_completed events are always delivered).
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.Events()
	if hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	since := parseCursor(r.URL.Query().Get("since"))
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		since = parseCursor(last)
	}
	jobFilter := r.URL.Query().Get("job")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	ctx := r.Context()

	fmt.Fprint(w, ":connected\n\n")
	if from, to, ok := resumeGap(hub.FirstSequence(), since); ok {
		fmt.Fprintf(w, ":missed %d-%d\n\n", from, to)
		s.logger.Debug("event stream resumed past buffer",
			logging.Uint64("since", since),
			logging.Uint64("missed_from", from),
			logging.Uint64("missed_to", to),
		)
	}
	if err := rc.Flush(); err != nil {
		s.logger.Debug("initial event flush failed", logging.Error(err))
		return
	}

	stream := hub.Subscribe(ctx, since)
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				s.logger.Debug("heartbeat flush failed, client likely disconnected", logging.Error(err))
				return
			}
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if jobFilter != "" && evt.JobID != "" && evt.JobID != jobFilter {
				continue
			}
			if err := writeEvent(w, evt); err != nil {
				s.logger.Warn("failed to write event", logging.String("event_type", string(evt.Type)), logging.Error(err))
				return
			}
			if err := rc.Flush(); err != nil {
				s.logger.Debug("event flush failed, client likely disconnected", logging.Error(err))
				return
			}
		}
	}
}

// resumeGap reports the sequence range a resuming client can no longer
// replay because it has left the hub buffer.
func resumeGap(first, since uint64) (uint64, uint64, bool) {
	if since == 0 || first <= since+1 {
		return 0, 0, false
	}
	return since + 1, first - 1, true
}

func writeEvent(w http.ResponseWriter, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Type, data)
	return err
}

func parseCursor(value string) uint64 {
	cursor, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return cursor
}
