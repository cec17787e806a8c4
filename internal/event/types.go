package event

import (
	"context"
	"fmt"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/mock_retriever.go -package=mocks github.com/mattjoyce/intercom-event/internal/event Retriever

// Event is a canonical Intercom notification resolved from a webhook call.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Topic     string         `json:"topic"`
	AppID     string         `json:"app_id,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	Data      map[string]any `json:"data,omitempty"`

	// Raw is the decoded upstream payload, kept for lookups of fields that
	// are not part of the envelope.
	Raw map[string]any `json:"-"`
}

// Get looks up a value by key. Envelope fields (id, type, topic, app_id)
// resolve first, then Data, then the raw payload. A leading ':' is ignored
// so ":topic" and "topic" are equivalent.
func (e *Event) Get(key string) (any, bool) {
	if e == nil {
		return nil, false
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), ":")

	switch key {
	case "id":
		return e.ID, e.ID != ""
	case "type":
		return e.Type, e.Type != ""
	case "topic":
		return e.Topic, e.Topic != ""
	case "app_id":
		return e.AppID, e.AppID != ""
	}

	if v, ok := e.Data[key]; ok {
		return v, true
	}
	if v, ok := e.Raw[key]; ok {
		return v, true
	}
	return nil, false
}

// Params is the raw parameter bag handed from the webhook endpoint to the
// retriever. Values come from the query string, form body and top-level
// JSON body fields.
type Params map[string]any

// String returns the value for key as a string, or "" when absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []string:
		if len(s) == 0 {
			return ""
		}
		return s[0]
	default:
		return fmt.Sprint(s)
	}
}

// Retriever resolves webhook params into an Event.
// Returning (nil, nil) means the webhook should be acknowledged but not
// dispatched.
type Retriever interface {
	Retrieve(ctx context.Context, params Params) (*Event, error)
}

// RetrieverFunc adapts a plain function to Retriever.
type RetrieverFunc func(ctx context.Context, params Params) (*Event, error)

// Retrieve calls f(ctx, params).
func (f RetrieverFunc) Retrieve(ctx context.Context, params Params) (*Event, error) {
	return f(ctx, params)
}
