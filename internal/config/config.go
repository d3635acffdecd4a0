package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"modelprobe/internal/models"
	"modelprobe/internal/registry"
)

const (
	defaultDirectURL = "https://forge.manus.ai/v1/chat/completions"
	defaultProxyURL  = "https://api.manus.im/api/llm-proxy/v1/chat/completions"
	completionsPath  = "/chat/completions"
)

// ErrMissingEndpoint is returned when a route has no URL.
var ErrMissingEndpoint = errors.New("route endpoint url is required")

// Config represents configuration data for a probe sweep.
type Config struct {
	OutputDirectory   string               `yaml:"output_directory"`
	BatchSize         int                  `yaml:"batch_size"`
	BatchDelaySeconds float64              `yaml:"batch_delay_seconds"`
	TimeoutSeconds    int                  `yaml:"timeout_seconds"`
	SkipPreflight     bool                 `yaml:"skip_preflight"`
	Routes            Routes               `yaml:"routes"`
	Targets           []models.ProbeTarget `yaml:"targets"`
}

// Routes holds the two routing paths.
type Routes struct {
	Direct Route `yaml:"direct"`
	Proxy  Route `yaml:"proxy"`
}

// Route is the file form of a routing path's endpoint and credentials.
type Route struct {
	URL             string            `yaml:"url"`
	AuthToken       string            `yaml:"auth_token"`
	AdminCredential string            `yaml:"admin_credential"`
	Headers         map[string]string `yaml:"headers"`
}

// DefaultConfig returns the built-in registry and public endpoints. Credentials
// are never defaulted.
func DefaultConfig() Config {
	return Config{
		OutputDirectory:   ".",
		BatchSize:         3,
		BatchDelaySeconds: 2,
		TimeoutSeconds:    60,
		Routes: Routes{
			Direct: Route{URL: defaultDirectURL},
			Proxy:  Route{URL: defaultProxyURL},
		},
		Targets: registry.Targets(),
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()
	if c.OutputDirectory == "" {
		c.OutputDirectory = defaults.OutputDirectory
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.BatchDelaySeconds < 0 {
		c.BatchDelaySeconds = defaults.BatchDelaySeconds
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if err := registry.Validate(c.Targets); err != nil {
		return fmt.Errorf("validate targets: %w", err)
	}
	return nil
}

// LoadEnv loads a .env file into the process environment. A missing file is
// not an error, and variables already set are left alone.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides route endpoints and credentials from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FORGE_API_URL"); v != "" {
		c.Routes.Direct.URL = CompletionsURL(v)
	}
	if v := firstEnv("FORGE_API_KEY", "BUILT_IN_FORGE_API_KEY"); v != "" {
		c.Routes.Direct.AuthToken = v
	}
	if v := os.Getenv("FORGE_ADMIN_PASSWORD"); v != "" {
		c.Routes.Direct.AdminCredential = v
	}
	if v := os.Getenv("LLM_PROXY_URL"); v != "" {
		c.Routes.Proxy.URL = CompletionsURL(v)
	}
	if v := os.Getenv("LLM_PROXY_KEY"); v != "" {
		c.Routes.Proxy.AuthToken = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// CompletionsURL turns a service base URL into its chat completions endpoint.
// URLs that already point at the endpoint are returned unchanged.
func CompletionsURL(base string) string {
	trimmed := strings.TrimRight(base, "/")
	switch {
	case strings.HasSuffix(trimmed, completionsPath):
		return trimmed
	case strings.HasSuffix(trimmed, "/v1"):
		return trimmed + completionsPath
	default:
		return trimmed + "/v1" + completionsPath
	}
}

// RouteTable builds the immutable route table used by the sweep.
func (c Config) RouteTable() (models.RouteTable, error) {
	table := models.RouteTable{
		models.DirectRoute: toRouteConfig(c.Routes.Direct),
		models.ProxyRoute:  toRouteConfig(c.Routes.Proxy),
	}
	for path, route := range table {
		if route.EndpointURL == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, path)
		}
	}
	return table, nil
}

func toRouteConfig(r Route) models.RouteConfig {
	var headers map[string]string
	if len(r.Headers) > 0 {
		headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			headers[k] = v
		}
	}
	return models.RouteConfig{
		EndpointURL:     r.URL,
		AuthToken:       r.AuthToken,
		AdminCredential: r.AdminCredential,
		ExtraHeaders:    headers,
	}
}

// BatchDelay returns the pause between batches.
func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySeconds * float64(time.Second))
}

// Timeout returns the per-probe timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
