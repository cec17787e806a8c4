package retriever

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattjoyce/intercom-event/internal/event"
)

// maxResponseSize caps how much of an upstream response is read.
const maxResponseSize = 1 << 20

// Intercom fetches the canonical event from the Intercom API by id.
type Intercom struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
}

var _ event.Retriever = (*Intercom)(nil)

// NewIntercom returns an Intercom retriever with its own HTTP client.
func NewIntercom(baseURL, accessToken string, timeout time.Duration) *Intercom {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Intercom{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		AccessToken: accessToken,
		Client:      &http.Client{Timeout: timeout},
	}
}

// Retrieve looks up params["id"]. 401, 403 and 404 responses, and a missing
// id, are reported as unauthorized retrievals.
func (c *Intercom) Retrieve(ctx context.Context, params event.Params) (*event.Event, error) {
	id := strings.TrimSpace(params.String("id"))
	if id == "" {
		return nil, &event.UnauthorizedError{Err: fmt.Errorf("missing event id")}
	}

	endpoint := c.BaseURL + "/events/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", id, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieve event %q: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read event %q: %w", id, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, &event.UnauthorizedError{
			ID:     id,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("upstream said: %s", summarize(body)),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("retrieve event %q: unexpected status %d: %s", id, resp.StatusCode, summarize(body))
	}

	ev, err := decodeEvent(body)
	if err != nil {
		return nil, fmt.Errorf("retrieve event %q: %w", id, err)
	}
	return ev, nil
}

func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "<empty body>"
	}
	return s
}
