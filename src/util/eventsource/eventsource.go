// Package eventsource writes server-sent event streams over hijacked HTTP
// connections. Taking over the raw connection keeps long-lived streams out
// of reach of the server's write timeout.
package eventsource

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// An EventSource is an open server-sent events stream. Writes are not
// synchronized, events are expected to come from a single goroutine.
type EventSource struct {
	conn net.Conn
}

// Begin hijacks the connection behind the response writer and emits the SSE
// preamble. The connection is closed when the request context ends, which
// unblocks any pending write.
func Begin(w http.ResponseWriter, r *http.Request) (*EventSource, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Transfer-Encoding", "identity")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("could not start event stream: connection is not hijackable")
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		return nil, fmt.Errorf("could not start event stream: %w", err)
	}
	rw.Flush()

	go func() {
		<-r.Context().Done()
		conn.Close()
	}()

	return &EventSource{conn: conn}, nil
}

// Event writes one named event carrying a preformatted single-line body.
func (es *EventSource) Event(event, body string) {
	fmt.Fprintf(es.conn, "event: %s\n", event)
	if body != "" {
		fmt.Fprintf(es.conn, "data: %s\n\n", body)
	}
}

// EventJSON writes one named event with the JSON encoding of body. A value
// that fails to encode is logged and dropped, the stream stays usable.
func (es *EventSource) EventJSON(event string, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		log.Errorf("Could not marshal %q event: %v", event, err)
		return
	}
	es.Event(event, string(b))
}
