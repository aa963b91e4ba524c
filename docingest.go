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


package docingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/poiesic/docingest/ai"
	"github.com/poiesic/docingest/ai/ollama"
	"github.com/poiesic/docingest/ai/openai"
	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/index/chroma"
	"github.com/poiesic/docingest/index/local"
	"github.com/poiesic/docingest/source"
	"github.com/poiesic/docingest/storage"
	"github.com/poiesic/docingest/storage/badger"
)

// Index backends.
const (
	BackendChroma = "chroma"
	BackendLocal  = "local"
)

// DefaultDataDir is where configuration, caches and shards live.
const DefaultDataDir = "data"

var (
	// ErrUnknownBackend is returned for an index backend other than chroma or local.
	ErrUnknownBackend = errors.New("unknown index backend")

	// ErrNoCache is returned for source kinds that are never cached.
	ErrNoCache = errors.New("source kind has no cache")

	// ErrNotLocal is returned when an operation needs the local index.
	ErrNotLocal = errors.New("operation requires the local index")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workspace closed")
)

// SourcePaths locates the files of one source kind.
type SourcePaths struct {
	Config string
	Cache  string
}

// Paths is the on-disk layout of a workspace.
type Paths struct {
	DataDir  string
	Sitemap  SourcePaths
	URLs     SourcePaths
	OpenAPI  SourcePaths
	Manual   SourcePaths
	ShardDir string
	IndexDir string
}

// For returns the paths of kind.
func (p Paths) For(kind source.Kind) SourcePaths {
	switch kind {
	case source.KindSitemap:
		return p.Sitemap
	case source.KindURLList:
		return p.URLs
	case source.KindOpenAPI:
		return p.OpenAPI
	case source.KindManual:
		return p.Manual
	}
	return SourcePaths{}
}

var unsafeShardChars = regexp.MustCompile(`[^a-z0-9]+`)

// ShardDirFor returns the shard directory of the named sitemap. Each
// sitemap stages its pages separately so that resumed shards are indexed
// under the right source name.
func (p Paths) ShardDirFor(name string) string {
	slug := strings.Trim(unsafeShardChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "default"
	}
	return filepath.Join(p.ShardDir, slug)
}

func newPaths(dataDir string) Paths {
	at := func(name string) string { return filepath.Join(dataDir, name) }
	return Paths{
		DataDir:  dataDir,
		Sitemap:  SourcePaths{Config: at("sitemap-config.json"), Cache: at(".sitemap-cache.json")},
		URLs:     SourcePaths{Config: at("urls.json"), Cache: at(".urls-cache.json")},
		OpenAPI:  SourcePaths{Config: at("openapi-config.json"), Cache: at(".openapi-cache.json")},
		Manual:   SourcePaths{Config: at("manual-docs.json")},
		ShardDir: at(".sitemap-temp"),
		IndexDir: at(".index"),
	}
}

// Workspace ties a data directory to an index and an embedder. The index
// is opened on first use.
type Workspace struct {
	paths      Paths
	backend    string
	aiConfig   *ai.Config
	chromaHost string
	embedder   ai.Embedder
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	client index.Client
	chroma *chroma.Client
	local  *badger.Backend
	repo   storage.DocumentRepository
	stores map[source.Kind]*cache.Store
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace) error

// WithIndexBackend selects "chroma" (default) or "local".
func WithIndexBackend(backend string) WorkspaceOption {
	return func(w *Workspace) error {
		backend = strings.ToLower(strings.TrimSpace(backend))
		switch backend {
		case BackendChroma, BackendLocal:
			w.backend = backend
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// WithAIConfig sets the embedding configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) WorkspaceOption {
	return func(w *Workspace) error {
		if cfg != nil {
			w.aiConfig = cfg
		}
		return nil
	}
}

// WithChromaHost sets the Chroma server URL.
func WithChromaHost(host string) WorkspaceOption {
	return func(w *Workspace) error {
		w.chromaHost = host
		return nil
	}
}

// WithEmbedder bypasses the AI configuration with a ready embedder.
func WithEmbedder(e ai.Embedder) WorkspaceOption {
	return func(w *Workspace) error {
		w.embedder = e
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(w *Workspace) error {
		if logger != nil {
			w.logger = logger
		}
		return nil
	}
}

// OpenWorkspace prepares a workspace rooted at dataDir. Nothing is
// connected or opened until it is needed.
func OpenWorkspace(dataDir string, opts ...WorkspaceOption) (*Workspace, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	w := &Workspace{
		paths:    newPaths(dataDir),
		backend:  BackendChroma,
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
		stores:   map[source.Kind]*cache.Store{},
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.aiConfig.Normalize()
	if w.embedder == nil {
		if err := w.aiConfig.Validate(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Paths returns the workspace layout.
func (w *Workspace) Paths() Paths {
	return w.paths
}

// Backend returns the selected index backend.
func (w *Workspace) Backend() string {
	return w.backend
}

// ConfigPath returns the configuration file of kind. A YAML file with the
// same base name is used when the JSON one does not exist.
func (w *Workspace) ConfigPath(kind source.Kind) string {
	path := w.paths.For(kind).Config
	if _, err := os.Stat(path); err == nil {
		return path
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".yaml", ".yml"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return path
}

// LoadConfig reads the configuration of kind.
func (w *Workspace) LoadConfig(kind source.Kind) (*source.Config, error) {
	return source.LoadConfig(w.ConfigPath(kind), kind)
}

// CacheStore returns the cache store of kind. Manual notes are never
// cached and yield ErrNoCache.
func (w *Workspace) CacheStore(kind source.Kind) (*cache.Store, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.stores[kind]; ok {
		return s, nil
	}
	path := w.paths.For(kind).Cache
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCache, kind)
	}
	s, err := cache.NewStore(path, cache.WithLogger(w.logger))
	if err != nil {
		return nil, err
	}
	w.stores[kind] = s
	return s, nil
}

// Embedder returns the configured embedder.
func (w *Workspace) Embedder() (ai.Embedder, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.embedderLocked()
}

func (w *Workspace) embedderLocked() (ai.Embedder, error) {
	if w.embedder != nil {
		return w.embedder, nil
	}
	var (
		e   ai.Embedder
		err error
	)
	switch w.aiConfig.Provider {
	case ai.ProviderOpenAI:
		e, err = openai.NewEmbedder(w.aiConfig)
	default:
		e, err = ollama.NewEmbedder(w.aiConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", w.aiConfig.Provider, err)
	}
	w.embedder = e
	return e, nil
}

// Index returns the index client, opening it on first use.
func (w *Workspace) Index() (index.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.client != nil {
		return w.client, nil
	}

	embedder, err := w.embedderLocked()
	if err != nil {
		return nil, err
	}

	switch w.backend {
	case BackendLocal:
		repo, err := w.repositoryLocked()
		if err != nil {
			return nil, err
		}
		c, err := local.New(repo, embedder, local.WithLogger(w.logger))
		if err != nil {
			return nil, err
		}
		w.client = c
	default:
		c, err := chroma.New(w.chromaHost, embedder, chroma.WithLogger(w.logger))
		if err != nil {
			return nil, err
		}
		w.chroma = c
		w.client = c
	}
	return w.client, nil
}

// Chroma returns the Chroma client when that backend is selected.
func (w *Workspace) Chroma() (*chroma.Client, bool) {
	if _, err := w.Index(); err != nil {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chroma, w.chroma != nil
}

// Repository returns the document store of the local index.
func (w *Workspace) Repository() (storage.DocumentRepository, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if w.backend != BackendLocal {
		return nil, ErrNotLocal
	}
	return w.repositoryLocked()
}

func (w *Workspace) repositoryLocked() (storage.DocumentRepository, error) {
	if w.repo != nil {
		return w.repo, nil
	}
	backend, err := badger.OpenBackend(w.paths.IndexDir, false, w.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local index %s: %w", w.paths.IndexDir, err)
	}
	w.local = backend
	w.repo = badger.NewDocumentRepository(backend)
	return w.repo, nil
}

// Close releases the index. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.client != nil {
		if err := w.client.Close(); err != nil {
			w.logger.Error("error closing index client", "err", err)
			errs = append(errs, err)
		}
	}
	if w.local != nil && !w.local.IsClosed() {
		if err := w.local.Close(); err != nil {
			w.logger.Error("error closing local index", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
