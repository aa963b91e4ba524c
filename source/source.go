package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/chunk"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/fetch"
)

// MinTextLength is the shortest extracted page text worth indexing.
const MinTextLength = 100

// State is the read-only view a source gets of the run: the cache snapshot
// loaded at start and the caller's flags.
type State struct {
	Cache cache.Cache
	Force bool
	TTL   time.Duration
}

// ItemResult is the cache entry to record for an item once its chunks have
// been committed to the index.
type ItemResult struct {
	Key          string
	Hash         string
	RemoteHash   string
	LastModified string
}

// Apply writes the entry into c.
func (r *ItemResult) Apply(c cache.Cache) {
	var opts []cache.UpdateOption
	if r.RemoteHash != "" {
		opts = append(opts, cache.WithRemoteHash(r.RemoteHash))
	}
	if r.LastModified != "" {
		opts = append(opts, cache.WithLastModified(r.LastModified))
	}
	cache.Update(c, r.Key, r.Hash, opts...)
}

// Source discovers items and turns each into chunk documents.
type Source interface {
	// Name identifies the source in logs and summaries.
	Name() string

	// Discover lists the items to consider. An error here aborts the run.
	Discover(ctx context.Context) ([]core.DiscoveredItem, error)

	// ShouldSkip decides, before any fetch, whether the item is unchanged.
	ShouldSkip(item core.DiscoveredItem, st State) bool

	// Process produces the documents for one item and the cache entry to
	// record after they are committed. A nil ItemResult means the item is
	// not cached. ErrUnchanged and core.ErrExtractionTooShort are not
	// failures.
	Process(ctx context.Context, item core.DiscoveredItem, st State) ([]core.ChunkDocument, *ItemResult, error)
}

// Limiter is implemented by sources that know how hard their upstream may
// be hit.
type Limiter interface {
	Limits() fetch.LimitOptions
}

type options struct {
	logger     *slog.Logger
	chunkOpts  []chunk.Option
	minText    int
	rawBaseURL string
}

// Option configures a source.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithChunkOptions overrides the chunker settings.
func WithChunkOptions(opts ...chunk.Option) Option {
	return func(o *options) {
		o.chunkOpts = opts
	}
}

// WithMinTextLength overrides MinTextLength.
func WithMinTextLength(n int) Option {
	return func(o *options) {
		o.minText = n
	}
}

// WithRawBaseURL overrides where OpenAPI documents are downloaded from.
// Default is https://raw.githubusercontent.com.
func WithRawBaseURL(u string) Option {
	return func(o *options) {
		o.rawBaseURL = u
	}
}

func newOptions(component string, opts []Option) options {
	o := options{
		logger:     slog.Default(),
		minText:    MinTextLength,
		rawBaseURL: defaultRawBaseURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
