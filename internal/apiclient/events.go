package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mp4forge/internal/events"
)

// EventQuery selects which events Events delivers.
type EventQuery struct {
	Since uint64
	JobID string
}

// Events follows the daemon's event stream, calling fn for every event until
// ctx ends, the stream closes, or fn returns an error. Returning ErrStop
// from fn ends the stream without error.
func (c *Client) Events(ctx context.Context, q EventQuery, fn func(events.Event) error) error {
	query := url.Values{}
	if q.Since > 0 {
		query.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.JobID != "" {
		query.Set("job", q.JobID)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream blocks until the caller cancels, so skip the client timeout.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var evt events.Event
			if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := fn(evt); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat or comment
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// ErrStop ends an Events stream cleanly when returned from the callback.
var ErrStop = errors.New("stop event stream")
