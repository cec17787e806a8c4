package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/intercom-event/internal/notify"
)

// handleStream serves hub notifications as server-sent events. The optional
// "topic" query parameter narrows the stream to a topic prefix.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	// The server WriteTimeout is sized for webhook replies; a stream must
	// outlive it.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("event stream: clear write deadline", "error", err)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filter := s.namespace.Matcher(r.URL.Query().Get("topic"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	// Send buffered notifications first for late clients.
	for _, n := range s.hub.SnapshotSince(lastID, filter) {
		if err := writeSSE(w, s.namespace, n); err != nil {
			return
		}
	}
	flusher.Flush()

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if !filter.MatchString(n.Channel) {
				continue
			}
			if err := writeSSE(w, s.namespace, n); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			// SSE comment line as keep-alive.
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeSSE frames one notification. The SSE event name is the topic with the
// namespace stripped.
func writeSSE(w http.ResponseWriter, ns notify.Namespace, n notify.Notification) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", n.ID); err != nil {
		return err
	}
	if topic, ok := ns.Trim(n.Channel); ok && topic != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", topic); err != nil {
			return err
		}
	}
	// Payload is single-line JSON.
	if _, err := fmt.Fprintf(w, "data: %s\n\n", n.Data); err != nil {
		return err
	}
	return nil
}
