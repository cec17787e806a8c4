package retriever

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mattjoyce/intercom-event/internal/event"
)

// decodeEvent builds an Event from an Intercom notification object.
func decodeEvent(body []byte) (*event.Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return eventFromMap(raw)
}

func eventFromMap(raw map[string]any) (*event.Event, error) {
	ev := &event.Event{
		ID:    stringField(raw, "id"),
		Type:  stringField(raw, "type"),
		Topic: stringField(raw, "topic"),
		AppID: stringField(raw, "app_id"),
		Raw:   raw,
	}
	if ev.Topic == "" {
		return nil, fmt.Errorf("event %q has no topic", ev.ID)
	}
	if data, ok := raw["data"].(map[string]any); ok {
		ev.Data = data
	}
	if ts, ok := unixField(raw, "created_at"); ok {
		ev.CreatedAt = ts
	}
	return ev, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func unixField(m map[string]any, key string) (time.Time, bool) {
	switch v := m[key].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}
