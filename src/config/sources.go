package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
	"gopkg.in/yaml.v3"
)

// Per-source defaults applied when the YAML leaves a field empty.
const (
	DefaultMaxRetries   = 3
	DefaultBackoffBase  = 500 * time.Millisecond
	DefaultBackoffMax   = 30 * time.Second
	DefaultRateInterval = time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultPageSize     = 20
	DefaultMaxDocuments = 50
)

// SourceConfig describes one configured source adapter.
type SourceConfig struct {
	Name    string            `yaml:"name" json:"name"`
	Kind    models.SourceKind `yaml:"kind" json:"kind"`
	Enabled *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	URL     string            `yaml:"url" json:"url"`

	// Chamber applied to rows that do not carry one (feed and document).
	Chamber string `yaml:"chamber,omitempty" json:"chamber,omitempty"`

	// feed
	Format   string `yaml:"format,omitempty" json:"format,omitempty"` // json | csv, empty means by extension
	Diff     bool   `yaml:"diff,omitempty" json:"diff,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty" json:"token_env,omitempty"`

	// api
	APIKeyEnv string   `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Chambers  []string `yaml:"chambers,omitempty" json:"chambers,omitempty"`
	PageSize  int      `yaml:"page_size,omitempty" json:"page_size,omitempty"`

	// document
	LinkPattern  string `yaml:"link_pattern,omitempty" json:"link_pattern,omitempty"`
	MaxDocuments int    `yaml:"max_documents,omitempty" json:"max_documents,omitempty"`

	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	BackoffBase  time.Duration `yaml:"backoff_base,omitempty" json:"backoff_base,omitempty"`
	BackoffMax   time.Duration `yaml:"backoff_max,omitempty" json:"backoff_max,omitempty"`
	RateInterval time.Duration `yaml:"rate_interval,omitempty" json:"rate_interval,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// IsEnabled reports whether the source takes part in runs. Sources are
// enabled unless explicitly turned off.
func (c SourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// APIKey resolves the API key from the configured environment variable.
func (c SourceConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Token resolves the bearer token from the configured environment variable.
func (c SourceConfig) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

// LoadSources reads and validates the source definitions file.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load sources %q: %w", path, err)
	}
	sources, err := ParseSources(data)
	if err != nil {
		return nil, fmt.Errorf("parse sources %q: %w", path, err)
	}
	return sources, nil
}

// ParseSources decodes a sources document, applies defaults and validates
// every entry.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		src.applyDefaults()
		if err := src.validate(); err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, src.Name, err)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("source %d: duplicate name %q", i, src.Name)
		}
		seen[src.Name] = true
	}
	return file.Sources, nil
}

func (c *SourceConfig) applyDefaults() {
	c.Name = strings.TrimSpace(c.Name)
	c.Kind = models.SourceKind(strings.ToLower(strings.TrimSpace(string(c.Kind))))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.RateInterval == 0 {
		c.RateInterval = DefaultRateInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	switch c.Kind {
	case models.SourceFeed:
		if c.Chamber == "" {
			c.Chamber = "Senate"
		}
	case models.SourceAPI:
		if c.PageSize == 0 {
			c.PageSize = DefaultPageSize
		}
		if len(c.Chambers) == 0 {
			c.Chambers = []string{"house", "senate"}
		}
	case models.SourceDocument:
		if c.MaxDocuments == 0 {
			c.MaxDocuments = DefaultMaxDocuments
		}
		if c.Chamber == "" {
			c.Chamber = "House"
		}
	}
}

func (c *SourceConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Kind {
	case models.SourceFeed, models.SourceAPI, models.SourceDocument:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q", c.URL)
	}
	if c.Format != "" && c.Format != "json" && c.Format != "csv" {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff_max %s is below backoff_base %s", c.BackoffMax, c.BackoffBase)
	}
	if c.PageSize < 0 || c.MaxDocuments < 0 {
		return fmt.Errorf("page_size and max_documents must not be negative")
	}
	if c.LinkPattern != "" {
		if _, err := regexp.Compile(c.LinkPattern); err != nil {
			return fmt.Errorf("link_pattern: %w", err)
		}
	}
	return nil
}
