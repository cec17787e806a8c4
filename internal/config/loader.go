package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
// A directory argument is resolved to <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	// Relative paths are resolved against the config file.
	if cfg.Retriever.FixturesDir != "" && !filepath.IsAbs(cfg.Retriever.FixturesDir) {
		cfg.Retriever.FixturesDir = filepath.Join(filepath.Dir(absPath), cfg.Retriever.FixturesDir)
	}
	if cfg.Service.PIDFile != "" && !filepath.IsAbs(cfg.Service.PIDFile) {
		cfg.Service.PIDFile = filepath.Join(filepath.Dir(absPath), cfg.Service.PIDFile)
	}

	return cfg, nil
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyConfigDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.Namespace == "" {
		cfg.Service.Namespace = defaults.Service.Namespace
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.HubSize == 0 {
		cfg.Service.HubSize = defaults.Service.HubSize
	}

	if cfg.Webhook.Listen == "" {
		cfg.Webhook.Listen = defaults.Webhook.Listen
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = defaults.Webhook.Path
	}
	if cfg.Webhook.SignatureHeader == "" {
		cfg.Webhook.SignatureHeader = defaults.Webhook.SignatureHeader
	}
	if cfg.Webhook.MaxBodySize == "" {
		cfg.Webhook.MaxBodySize = defaults.Webhook.MaxBodySize
	}
	if cfg.Webhook.ReadTimeout == 0 {
		cfg.Webhook.ReadTimeout = defaults.Webhook.ReadTimeout
	}
	if cfg.Webhook.WriteTimeout == 0 {
		cfg.Webhook.WriteTimeout = defaults.Webhook.WriteTimeout
	}

	if cfg.Retriever.Kind == "" {
		cfg.Retriever.Kind = defaults.Retriever.Kind
	}
	if cfg.Retriever.Kind == RetrieverIntercom && cfg.Retriever.BaseURL == "" {
		cfg.Retriever.BaseURL = defaults.Retriever.BaseURL
	}
	if cfg.Retriever.Timeout == 0 {
		cfg.Retriever.Timeout = defaults.Retriever.Timeout
	}

	for i := range cfg.Subscriptions {
		if cfg.Subscriptions[i].Action == "" {
			cfg.Subscriptions[i].Action = ActionLog
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the missing variable.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}
	if cfg.Service.HubSize < 0 {
		return fmt.Errorf("service.hub_size must not be negative")
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}
	if err := checkUnresolved("webhook.secret", cfg.Webhook.Secret); err != nil {
		return err
	}
	if err := checkUnresolved("webhook.signing_secret", cfg.Webhook.SigningSecret); err != nil {
		return err
	}
	if _, err := ParseMaxBodySize(cfg.Webhook.MaxBodySize); err != nil {
		return fmt.Errorf("webhook.max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	switch cfg.Retriever.Kind {
	case RetrieverIntercom:
		if !strings.HasPrefix(cfg.Retriever.BaseURL, "http://") && !strings.HasPrefix(cfg.Retriever.BaseURL, "https://") {
			return fmt.Errorf("retriever.base_url must be an http(s) URL (got %q)", cfg.Retriever.BaseURL)
		}
		if err := checkUnresolved("retriever.access_token", cfg.Retriever.AccessToken); err != nil {
			return err
		}
	case RetrieverFixtures:
		if cfg.Retriever.FixturesDir == "" {
			return fmt.Errorf("retriever.fixtures_dir is required for kind %q", RetrieverFixtures)
		}
	case RetrieverPassthrough, RetrieverIgnore:
	default:
		return fmt.Errorf("retriever.kind must be one of: intercom, fixtures, passthrough, ignore (got %q)", cfg.Retriever.Kind)
	}
	if cfg.Retriever.Timeout < 0 {
		return fmt.Errorf("retriever.timeout must not be negative")
	}

	for i, sub := range cfg.Subscriptions {
		set := 0
		if sub.Topic != "" {
			set++
		}
		if sub.Namespace != "" {
			set++
		}
		if sub.All {
			set++
		}
		if set != 1 {
			return fmt.Errorf("subscriptions[%d]: exactly one of topic, namespace or all is required", i)
		}
		if sub.Action != ActionLog {
			return fmt.Errorf("subscriptions[%d]: unknown action %q", i, sub.Action)
		}
	}

	return nil
}

func checkUnresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// DefaultMaxBodySize is used when no limit is configured.
const DefaultMaxBodySize = 1048576 // 1 MB

// ParseMaxBodySize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
