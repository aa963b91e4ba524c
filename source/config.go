// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docingest/extract"
	"gopkg.in/yaml.v3"
)

// Kind tags a source configuration variant.
type Kind string

const (
	KindSitemap Kind = "sitemap"
	KindURLList Kind = "urls"
	KindOpenAPI Kind = "openapi"
	KindManual  Kind = "manual"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindSitemap, KindURLList, KindOpenAPI, KindManual}

// ParseKind converts a name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Selectors is a list of CSS selectors that also decodes from a single string.
type Selectors []string

// UnmarshalJSON accepts "sel" or ["a", "b"].
func (s *Selectors) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = splitSelector(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("selector must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// UnmarshalYAML accepts a scalar or a sequence.
func (s *Selectors) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = splitSelector(node.Value)
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return fmt.Errorf("selector must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

func splitSelector(s string) Selectors {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return Selectors{s}
}

// SitemapConfig describes one sitemap to crawl.
type SitemapConfig struct {
	URL         string    `json:"url" yaml:"url"`
	Name        string    `json:"name" yaml:"name"`
	Include     []string  `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude     []string  `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Selector    Selectors `json:"selector,omitempty" yaml:"selector,omitempty"`
	Concurrency int       `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	RateLimitMs int       `json:"rateLimitMs,omitempty" yaml:"rateLimitMs,omitempty"`
}

// Validate checks required fields, selectors and patterns.
func (c SitemapConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: sitemap name is required", ErrInvalidConfig)
	}
	if err := validateURL(c.URL); err != nil {
		return fmt.Errorf("%w: sitemap %q: %w", ErrInvalidConfig, c.Name, err)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: sitemap %q: concurrency must be >= 1", ErrInvalidConfig, c.Name)
	}
	if c.RateLimitMs < 0 {
		return fmt.Errorf("%w: sitemap %q: rateLimitMs must be >= 0", ErrInvalidConfig, c.Name)
	}
	if err := extract.CompileSelectors(c.Selector); err != nil {
		return fmt.Errorf("%w: sitemap %q: %w", ErrInvalidConfig, c.Name, err)
	}
	if _, err := NewPatternMatcher(c.Include, c.Exclude); err != nil {
		return fmt.Errorf("%w: sitemap %q: %w", ErrInvalidConfig, c.Name, err)
	}
	return nil
}

// URLEntry is one page of a URL list.
type URLEntry struct {
	URL      string    `json:"url" yaml:"url"`
	Name     string    `json:"name" yaml:"name"`
	Selector Selectors `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// URLListConfig is the static list of pages to ingest.
type URLListConfig []URLEntry

// Validate checks every entry.
func (c URLListConfig) Validate() error {
	for i, e := range c {
		if e.Name == "" {
			return fmt.Errorf("%w: urls[%d]: name is required", ErrInvalidConfig, i)
		}
		if err := validateURL(e.URL); err != nil {
			return fmt.Errorf("%w: urls[%d]: %w", ErrInvalidConfig, i, err)
		}
		if err := extract.CompileSelectors(e.Selector); err != nil {
			return fmt.Errorf("%w: urls[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// OpenAPIConfig locates a repository of OpenAPI documents.
type OpenAPIConfig struct {
	GitHubRepo  string `json:"githubRepo" yaml:"githubRepo"`
	Branch      string `json:"branch" yaml:"branch"`
	FilePrefix  string `json:"filePrefix" yaml:"filePrefix"`
	DocsBaseURL string `json:"docsBaseUrl" yaml:"docsBaseUrl"`
	Directory   string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Owner returns the repository owner.
func (c OpenAPIConfig) Owner() string {
	owner, _, _ := strings.Cut(c.GitHubRepo, "/")
	return owner
}

// Repo returns the repository name.
func (c OpenAPIConfig) Repo() string {
	_, repo, _ := strings.Cut(c.GitHubRepo, "/")
	return repo
}

// Validate checks required fields.
func (c *OpenAPIConfig) Validate() error {
	owner, repo, ok := strings.Cut(c.GitHubRepo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("%w: githubRepo must be owner/repo, got %q", ErrInvalidConfig, c.GitHubRepo)
	}
	if c.Branch == "" {
		c.Branch = "main"
	}
	if err := validateURL(c.DocsBaseURL); err != nil {
		return fmt.Errorf("%w: docsBaseUrl: %w", ErrInvalidConfig, err)
	}
	c.DocsBaseURL = strings.TrimRight(c.DocsBaseURL, "/")
	return nil
}

// ManualDoc is one hand-written note.
type ManualDoc struct {
	Topic string `json:"topic" yaml:"topic"`
	Text  string `json:"text" yaml:"text"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ManualConfig is the list of manual notes.
type ManualConfig []ManualDoc

// Validate checks every note has a topic and text.
func (c ManualConfig) Validate() error {
	for i, d := range c {
		if strings.TrimSpace(d.Topic) == "" {
			return fmt.Errorf("%w: manual[%d]: topic is required", ErrInvalidConfig, i)
		}
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("%w: manual[%d]: text is required", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Config is a tagged union of the adapter configurations.
// Exactly the field matching Kind is populated.
type Config struct {
	Kind     Kind
	Sitemaps []SitemapConfig
	URLs     URLListConfig
	OpenAPI  *OpenAPIConfig
	Manual   ManualConfig
}

// Validate dispatches to the variant's validation.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindSitemap:
		if len(c.Sitemaps) == 0 {
			return fmt.Errorf("%w: no sitemaps configured", ErrInvalidConfig)
		}
		for _, s := range c.Sitemaps {
			if err := s.Validate(); err != nil {
				return err
			}
		}
		return nil
	case KindURLList:
		return c.URLs.Validate()
	case KindOpenAPI:
		if c.OpenAPI == nil {
			return fmt.Errorf("%w: openapi config is empty", ErrInvalidConfig)
		}
		return c.OpenAPI.Validate()
	case KindManual:
		return c.Manual.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// LoadConfig reads and validates the configuration file for kind.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadConfig(path string, kind Kind) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	decode := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	}

	cfg := &Config{Kind: kind}
	switch kind {
	case KindSitemap:
		err = decode(data, &cfg.Sitemaps)
	case KindURLList:
		err = decode(data, &cfg.URLs)
	case KindOpenAPI:
		cfg.OpenAPI = &OpenAPIConfig{}
		err = decode(data, cfg.OpenAPI)
	case KindManual:
		err = decode(data, &cfg.Manual)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
