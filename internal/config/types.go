package config

import "time"

// Config represents the complete intercom-event configuration.
type Config struct {
	Service       ServiceConfig        `yaml:"service"`
	Webhook       WebhookConfig        `yaml:"webhook"`
	Retriever     RetrieverConfig      `yaml:"retriever"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	HubSize   int    `yaml:"hub_size"`

	// PIDFile, when set, keeps a second serve from starting against it.
	PIDFile string `yaml:"pid_file,omitempty"`
}

// WebhookConfig defines the inbound webhook listener.
type WebhookConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`

	// Secret enables HTTP Basic credential checking. The username is ignored;
	// the password must equal Secret.
	Secret string `yaml:"secret,omitempty"`

	// SigningSecret enables HMAC verification of the request body using
	// SignatureHeader (Intercom sends X-Hub-Signature: sha1=<hex>).
	SigningSecret   string `yaml:"signing_secret,omitempty"`
	SignatureHeader string `yaml:"signature_header,omitempty"`

	// MaxBodySize accepts plain bytes or KB/MB/GB suffixes.
	MaxBodySize string `yaml:"max_body_size,omitempty"`

	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// RetrieverConfig selects how webhook params become events.
type RetrieverConfig struct {
	// Kind is one of: intercom, fixtures, passthrough, ignore.
	Kind        string        `yaml:"kind"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	AccessToken string        `yaml:"access_token,omitempty"`
	FixturesDir string        `yaml:"fixtures_dir,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// SubscriptionConfig declares a built-in subscriber. Exactly one of Topic,
// Namespace or All must be set.
type SubscriptionConfig struct {
	Topic     string `yaml:"topic,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	All       bool   `yaml:"all,omitempty"`

	// Action is what the subscriber does with the event. Only "log" exists.
	Action string `yaml:"action"`
}

// Retriever kinds.
const (
	RetrieverIntercom    = "intercom"
	RetrieverFixtures    = "fixtures"
	RetrieverPassthrough = "passthrough"
	RetrieverIgnore      = "ignore"
)

// ActionLog logs each matching event.
const ActionLog = "log"

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "intercom-event",
			Namespace: "intercom_event",
			LogLevel:  "info",
			LogFormat: "json",
			HubSize:   256,
		},
		Webhook: WebhookConfig{
			Listen:          "127.0.0.1:8081",
			Path:            "/webhook",
			SignatureHeader: "X-Hub-Signature",
			MaxBodySize:     "1MB",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Retriever: RetrieverConfig{
			Kind:    RetrieverIntercom,
			BaseURL: "https://api.intercom.com/v1",
			Timeout: 10 * time.Second,
		},
	}
}
