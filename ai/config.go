package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Supported embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "mxbai-embed-large"

// Config holds configuration for the embedding service.
type Config struct {
	// Provider selects the client implementation: "ollama" or "openai".
	Provider string

	// Host is the base URL of the embedding server.
	// Example: "http://localhost:11434" for a local Ollama.
	Host string

	// Model is the embedding model identifier.
	// Example: "mxbai-embed-large", "text-embedding-3-small"
	Model string

	// APIKey authenticates against hosted OpenAI-compatible services.
	// Local servers ignore it.
	APIKey string
}

// ConfigOption is a functional option for configuring Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding provider.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithHost sets the embedding server URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key for hosted services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// DefaultConfig returns a configuration for a local Ollama server.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderOllama,
		Host:     "http://localhost:11434",
		Model:    DefaultModel,
	}
}

// NewConfig creates a new Config with the given options applied to the defaults.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims trailing slashes from Host and, for OpenAI-compatible
// servers, makes sure it ends with /v1.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if c.Provider == ProviderOpenAI && c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host += "/v1"
	}
}

// Validate normalizes the configuration and checks required fields.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	return nil
}
