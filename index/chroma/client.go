package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/docingest/ai"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/retry"
)

const (
	DefaultHost     = "http://localhost:8000"
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
	defaultTimeout  = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to one collection of a Chroma server.
type Client struct {
	baseURL    string
	tenant     string
	database   string
	collection string
	httpClient *http.Client
	embedder   ai.Embedder
	policy     retry.Policy
	logger     *slog.Logger

	mu           sync.Mutex
	collectionID string
}

var _ index.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithTenant sets the Chroma tenant.
func WithTenant(tenant string) Option {
	return func(c *Client) error {
		if tenant == "" {
			return errors.New("tenant cannot be empty")
		}
		c.tenant = tenant
		return nil
	}
}

// WithDatabase sets the Chroma database.
func WithDatabase(database string) Option {
	return func(c *Client) error {
		if database == "" {
			return errors.New("database cannot be empty")
		}
		c.database = database
		return nil
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(c *Client) error {
		if name == "" {
			return errors.New("collection cannot be empty")
		}
		c.collection = name
		return nil
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithRetryPolicy sets how upserts are retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) error {
		if p.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.policy = p
		return nil
	}
}

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a client for host. The collection is created lazily on first use.
func New(host string, embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, errors.New("chroma: embedder is required")
	}
	if host == "" {
		host = DefaultHost
	}
	if _, err := url.Parse(host); err != nil {
		return nil, fmt.Errorf("chroma: invalid host: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(host, "/"),
		tenant:     DefaultTenant,
		database:   DefaultDatabase,
		collection: index.DefaultCollection,
		httpClient: &http.Client{Timeout: defaultTimeout},
		embedder:   embedder,
		policy:     retry.Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Backoff: retry.Exponential},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("chroma: %w", err)
		}
	}
	c.logger = c.logger.With("component", "chroma", "collection", c.collection)
	return c, nil
}

// Collection returns the collection name.
func (c *Client) Collection() string {
	return c.collection
}

// Heartbeat checks the server is reachable and returns its clock in
// nanoseconds.
func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	var resp map[string]int64
	if err := c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, &resp); err != nil {
		return 0, err
	}
	return resp["nanosecond heartbeat"], nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	return core.NormalizeVector(vector), nil
}

type upsertRequest struct {
	IDs        []string            `json:"ids"`
	Embeddings [][]float32         `json:"embeddings"`
	Documents  []string            `json:"documents"`
	Metadatas  []map[string]string `json:"metadatas"`
}

// Upsert embeds docs and writes them to the collection.
func (c *Client) Upsert(ctx context.Context, docs []core.ChunkDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	vectors, err := index.EmbedDocuments(ctx, c.embedder.EmbedTexts, docs)
	if err != nil {
		return 0, err
	}

	id, err := c.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}

	req := upsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: vectors,
		Documents:  make([]string, len(docs)),
		Metadatas:  make([]map[string]string, len(docs)),
	}
	for i, d := range docs {
		req.IDs[i] = d.ID
		req.Documents[i] = d.Text
		req.Metadatas[i] = map[string]string{"source": d.Source, "url": d.URL}
	}

	attempts, err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, c.collectionPath(id)+"/upsert", req, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d documents after %d attempt(s): %w", len(docs), attempts, err)
	}

	c.logger.Debug("upserted documents", "count", len(docs))
	return len(docs), nil
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float32        `json:"distances"`
}

// Query returns the documents nearest to text. Scores are 1/(1+distance).
func (c *Client) Query(ctx context.Context, text string, topK int) []core.QueryResult {
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	vector, err := c.Embed(ctx, text)
	if err != nil {
		c.logger.Warn("query embedding failed", "err", err)
		return nil
	}

	id, err := c.ensureCollection(ctx)
	if err != nil {
		c.logger.Warn("query failed", "err", err)
		return nil
	}

	var resp queryResponse
	req := queryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	if err := c.do(ctx, http.MethodPost, c.collectionPath(id)+"/query", req, &resp); err != nil {
		c.logger.Warn("query failed", "err", err)
		return nil
	}
	if len(resp.IDs) == 0 {
		return nil
	}

	results := make([]core.QueryResult, 0, len(resp.IDs[0]))
	for i := range resp.IDs[0] {
		var r core.QueryResult
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			r.Text = *resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta := resp.Metadatas[0][i]
			r.Source, _ = meta["source"].(string)
			r.URL, _ = meta["url"].(string)
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Score = 1 / (1 + resp.Distances[0][i])
		}
		results = append(results, r)
	}
	return results
}

// Stats returns the number of documents in the collection.
func (c *Client) Stats(ctx context.Context) (core.Stats, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	var count int
	if err := c.do(ctx, http.MethodGet, c.collectionPath(id)+"/count", nil, &count); err != nil {
		return core.Stats{}, err
	}
	return core.Stats{Count: count, Name: c.collection}, nil
}

// Reset deletes the collection. A missing collection is not an error.
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.collectionID = ""
	c.mu.Unlock()

	err := c.do(ctx, http.MethodDelete, c.databasePath()+"/collections/"+url.PathEscape(c.collection), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	if err == nil {
		c.logger.Info("collection deleted")
	}
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type collectionRequest struct {
	Name        string `json:"name"`
	GetOrCreate bool   `json:"get_or_create"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ensureCollection returns the collection ID, creating it if needed.
func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var resp collectionResponse
	req := collectionRequest{Name: c.collection, GetOrCreate: true}
	if err := c.do(ctx, http.MethodPost, c.databasePath()+"/collections", req, &resp); err != nil {
		return "", fmt.Errorf("get or create collection %q: %w", c.collection, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("get or create collection %q: empty id in response", c.collection)
	}
	c.collectionID = resp.ID
	return resp.ID, nil
}

func (c *Client) databasePath() string {
	return "/api/v2/tenants/" + url.PathEscape(c.tenant) + "/databases/" + url.PathEscape(c.database)
}

func (c *Client) collectionPath(id string) string {
	return c.databasePath() + "/collections/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
