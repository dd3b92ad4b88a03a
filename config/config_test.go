package config

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kroma-labs/httprequester/httpclient"
	"github.com/kroma-labs/httprequester/requester"
	"github.com/kroma-labs/httprequester/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithEnvPrefix(""))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Client.Preset)
	assert.True(t, cfg.Client.Decompression)
	assert.Equal(t, uint(0), cfg.Retry.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Retry.Delay)
	assert.Equal(t, "constant", cfg.Retry.Strategy)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "httprequester", cfg.Telemetry.ServiceName)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Breaker.Enabled)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  base_url: https://file.example.com
  timeout: 2s
  headers:
    Accept: application/json
retry:
  max_retries: 2
  strategy: exponential
`), 0o600))

	t.Setenv("HTTPREQUESTER_RETRY__MAX_RETRIES", "5")
	t.Setenv("HTTPREQUESTER_CLIENT__USER_AGENT__PRODUCT", "Env")

	cfg, err := Load(
		WithFile(path),
		WithYAML([]byte("client:\n  lease: 1m\n")),
		WithOverrides(map[string]any{"client.base_url": "https://flag.example.com"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com", cfg.Client.BaseURL, "overrides win")
	assert.Equal(t, 2*time.Second, cfg.Client.Timeout, "file value kept")
	assert.Equal(t, time.Minute, cfg.Client.Lease, "inline yaml applied")
	assert.Equal(t, map[string]string{"Accept": "application/json"}, cfg.Client.Headers)
	assert.Equal(t, uint(5), cfg.Retry.MaxRetries, "environment beats file")
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.Equal(t, "Env", cfg.Client.UserAgent.Product)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")))

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "given defaults, then valid", mutate: func(*Config) {}},
		{
			name:      "given negative timeout, then client.timeout",
			mutate:    func(c *Config) { c.Client.Timeout = -time.Second },
			wantField: "client.timeout",
		},
		{
			name:      "given unknown preset, then client.preset",
			mutate:    func(c *Config) { c.Client.Preset = "turbo" },
			wantField: "client.preset",
		},
		{
			name:      "given unknown strategy, then retry",
			mutate:    func(c *Config) { c.Retry.Strategy = "fibonacci" },
			wantField: "retry",
		},
		{
			name: "given distributed breaker without redis, then redis.addr",
			mutate: func(c *Config) {
				c.Breaker.Enabled = true
				c.Breaker.Distributed = true
			},
			wantField: "redis.addr",
		},
		{
			name: "given rate limit without burst, then rate_limit.burst",
			mutate: func(c *Config) {
				c.RateLimit.RequestsPerSecond = 10
				c.RateLimit.Burst = 0
			},
			wantField: "rate_limit.burst",
		},
		{
			name:      "given bad log level, then log.level",
			mutate:    func(c *Config) { c.Log.Level = "loud" },
			wantField: "log.level",
		},
		{
			name:      "given chaos rate above one, then chaos.error_rate",
			mutate:    func(c *Config) { c.Chaos.ErrorRate = 1.5 },
			wantField: "chaos.error_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithEnvPrefix(""))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *httpclient.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestConfig_RetryPolicy(t *testing.T) {
	cfg, err := Load(WithEnvPrefix(""), WithYAML([]byte(`
retry:
  max_retries: 4
  delay: 100ms
  strategy: Linear
`)))
	require.NoError(t, err)

	rc := cfg.RetryPolicy()

	assert.Equal(t, uint(4), rc.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, rc.Delay)
	assert.Equal(t, retry.StrategyLinear, rc.Strategy)
}

func TestConfig_ClientAndRequesterOptions(t *testing.T) {
	var gotHeader http.Header
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader, gotQuery = r.Header.Clone(), r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg, err := Load(WithEnvPrefix(""), WithYAML([]byte(`
client:
  timeout: 1s
  headers:
    X-Team: payments
  default_query:
    b: "2"
    a: "1"
  user_agent:
    product: Orders
    version: 2.1.0
breaker:
  enabled: true
rate_limit:
  requests_per_second: 100
  burst: 5
`)), WithOverrides(map[string]any{"client.base_url": server.URL}))
	require.NoError(t, err)

	clientOpts, err := cfg.ClientOptions(Runtime{})
	require.NoError(t, err)
	client, err := httpclient.New(clientOpts...)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, time.Second, client.Timeout())

	r, err := requester.New(client, cfg.RequesterOptions(Runtime{})...)
	require.NoError(t, err)

	resp, err := r.Get(context.Background(), "items")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "payments", gotHeader.Get("X-Team"))
	assert.Equal(t, "Orders/2.1.0", gotHeader.Get("User-Agent"))
	assert.Equal(t, "a=1&b=2", gotQuery)
}

func TestConfig_ClientOptions_DistributedBreaker(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg, err := Load(WithEnvPrefix(""), WithOverrides(map[string]any{
		"client.base_url":     "http://api.local",
		"breaker.enabled":     true,
		"breaker.distributed": true,
		"redis.addr":          mr.Addr(),
	}))
	require.NoError(t, err)

	rdb := cfg.NewRedis()
	require.NotNil(t, rdb)
	defer rdb.Close()

	opts, err := cfg.ClientOptions(Runtime{Redis: rdb})
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	_, err = cfg.ClientOptions(Runtime{})
	assert.True(t, httpclient.IsConfigError(err), "distributed breaker needs a redis client")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		logInfo bool
		want    string
	}{
		{name: "given json info, then json line", level: "info", format: "json", logInfo: true, want: `"message":"hello"`},
		{name: "given warn level, then info suppressed", level: "warn", format: "json", logInfo: true, want: ""},
		{name: "given console, then plain text", level: "debug", format: "console", logInfo: true, want: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Log: LogConfig{Level: tt.level, Format: tt.format}}
			var buf bytes.Buffer

			logger := cfg.NewLogger(&buf)
			logger.Info().Msg("hello")

			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestConfig_NewRedis_Disabled(t *testing.T) {
	cfg := &Config{}

	assert.Nil(t, cfg.NewRedis())
}

func TestEnvKey(t *testing.T) {
	key, value := envKey(EnvPrefix)("HTTPREQUESTER_RATE_LIMIT__REQUESTS_PER_SECOND", "50")

	assert.Equal(t, "rate_limit.requests_per_second", key)
	assert.Equal(t, "50", value)
}
