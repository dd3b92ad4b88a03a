package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the default prefix of environment variables read by Load.
const EnvPrefix = "HTTPREQUESTER_"

type loadOptions struct {
	file      string
	yaml      []byte
	envPrefix string
	overrides map[string]any
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithFile reads a YAML file. A missing file is an error.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.file = path
	}
}

// WithYAML reads inline YAML, applied after any file.
func WithYAML(data []byte) LoadOption {
	return func(o *loadOptions) {
		o.yaml = data
	}
}

// WithEnvPrefix changes the environment prefix. An empty prefix disables
// environment loading.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithOverrides applies dotted keys last, e.g. {"client.base_url": "..."}.
func WithOverrides(values map[string]any) LoadOption {
	return func(o *loadOptions) {
		o.overrides = values
	}
}

// Load builds and validates a Config.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", o.file, err)
		}
	}

	if len(o.yaml) > 0 {
		if err := k.Load(rawbytes.Provider(o.yaml), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if o.envPrefix != "" {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        o.envPrefix,
			TransformFunc: envKey(o.envPrefix),
		}), nil); err != nil {
			return nil, fmt.Errorf("config: load environment: %w", err)
		}
	}

	if len(o.overrides) > 0 {
		if err := k.Load(confmap.Provider(o.overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HTTPREQUESTER_CLIENT__BASE_URL to client.base_url.
func envKey(prefix string) func(key, value string) (string, any) {
	return func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, prefix))
		return strings.ReplaceAll(key, "__", "."), value
	}
}

func defaults() map[string]any {
	return map[string]any{
		"client.preset":        "default",
		"client.decompression": true,

		"retry.max_retries": 0,
		"retry.delay":       "3s",
		"retry.max_delay":   "30s",
		"retry.multiplier":  2.0,
		"retry.strategy":    "constant",

		"rate_limit.burst": 10,
		"rate_limit.wait":  true,

		"log.level":  "info",
		"log.format": "console",

		"telemetry.service_name": "httprequester",
		"telemetry.insecure":     true,

		"server.addr":             ":8080",
		"server.max_delay":        "30s",
		"server.shutdown_timeout": "10s",
	}
}
