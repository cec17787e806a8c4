package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/mattjoyce/intercom-event/internal/config"
	"github.com/mattjoyce/intercom-event/internal/dispatch"
	"github.com/mattjoyce/intercom-event/internal/event"
)

// Instrumenter runs a webhook through the dispatch pipeline.
type Instrumenter interface {
	Instrument(ctx context.Context, params event.Params) (dispatch.Result, error)
	// Secret is read on every request; "" disables the credential check.
	Secret() string
}

// ErrorHandler answers requests whose dispatch failed with an error that is
// not an unauthorized retrieval.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Config holds webhook server configuration.
type Config struct {
	Listen string
	Path   string

	// SigningSecret enables HMAC body verification via SignatureHeader.
	SigningSecret   string
	SignatureHeader string

	MaxBodySize  int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Default values
const (
	DefaultPath            = "/webhook"
	DefaultSignatureHeader = "X-Hub-Signature"
	DefaultMaxBodySize     = config.DefaultMaxBodySize
)

// FromGlobalConfig converts config.WebhookConfig to webhook.Config.
func FromGlobalConfig(wc config.WebhookConfig) (Config, error) {
	maxBodySize, err := config.ParseMaxBodySize(wc.MaxBodySize)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Listen:          wc.Listen,
		Path:            wc.Path,
		SigningSecret:   wc.SigningSecret,
		SignatureHeader: wc.SignatureHeader,
		MaxBodySize:     maxBodySize,
		ReadTimeout:     wc.ReadTimeout,
		WriteTimeout:    wc.WriteTimeout,
	}, nil
}
