package retriever

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/intercom-event/internal/config"
	"github.com/mattjoyce/intercom-event/internal/event"
)

// Fixtures resolves events from <Dir>/<id>.json. A missing file is treated
// like an upstream 404.
type Fixtures struct {
	Dir string
}

var _ event.Retriever = Fixtures{}

func (f Fixtures) Retrieve(ctx context.Context, params event.Params) (*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(params.String("id"))
	if id == "" {
		return nil, &event.UnauthorizedError{Err: fmt.Errorf("missing event id")}
	}
	if id != filepath.Base(id) || strings.Contains(id, "..") {
		return nil, &event.UnauthorizedError{ID: id, Err: fmt.Errorf("invalid event id")}
	}

	data, err := os.ReadFile(filepath.Join(f.Dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &event.UnauthorizedError{ID: id, Status: 404, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture %q: %w", id, err)
	}
	return decodeEvent(data)
}

// Passthrough builds the event from the inbound params themselves. Intercom
// pushes the whole notification object, so no lookup is needed. Params
// without a topic are ignored.
type Passthrough struct{}

func (Passthrough) Retrieve(_ context.Context, params event.Params) (*event.Event, error) {
	if params.String("topic") == "" {
		return nil, nil
	}
	return eventFromMap(map[string]any(params))
}

// Ignore acknowledges every webhook without dispatching it.
type Ignore struct{}

func (Ignore) Retrieve(context.Context, event.Params) (*event.Event, error) {
	return nil, nil
}

// New builds the retriever selected by cfg.Kind.
func New(cfg config.RetrieverConfig) (event.Retriever, error) {
	switch cfg.Kind {
	case config.RetrieverIntercom, "":
		return NewIntercom(cfg.BaseURL, cfg.AccessToken, cfg.Timeout), nil
	case config.RetrieverFixtures:
		if cfg.FixturesDir == "" {
			return nil, fmt.Errorf("fixtures retriever requires fixtures_dir")
		}
		return Fixtures{Dir: cfg.FixturesDir}, nil
	case config.RetrieverPassthrough:
		return Passthrough{}, nil
	case config.RetrieverIgnore:
		return Ignore{}, nil
	}
	return nil, fmt.Errorf("unknown retriever kind %q", cfg.Kind)
}
