package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/fetch"
)

const (
	DefaultOpenAPIConcurrency = 1
	DefaultOpenAPIDelay       = 100 * time.Millisecond

	// minEndpointText is the exclusive lower bound on endpoint text length.
	minEndpointText = 100
)

// operationMethods is the order in which operations of a path are emitted.
var operationMethods = []string{"get", "post", "put", "patch", "delete"}

// OpenAPISource ingests OpenAPI documents from a repository. Unchanged
// documents are recognised by their blob SHA without being downloaded.
type OpenAPISource struct {
	cfg     OpenAPIConfig
	lister  Lister
	fetcher *fetch.Fetcher
	opts    options
	logger  *slog.Logger
}

// NewOpenAPISource creates an OpenAPI source. The config is validated.
func NewOpenAPISource(cfg OpenAPIConfig, lister Lister, f *fetch.Fetcher, opts ...Option) (*OpenAPISource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lister == nil {
		return nil, fmt.Errorf("%w: repository lister is required", ErrInvalidConfig)
	}
	o := newOptions("openapi-source", opts)
	return &OpenAPISource{cfg: cfg, lister: lister, fetcher: f, opts: o, logger: o.logger}, nil
}

// Name returns "openapi".
func (s *OpenAPISource) Name() string {
	return string(KindOpenAPI)
}

// Limits downloads documents one at a time.
func (s *OpenAPISource) Limits() fetch.LimitOptions {
	return fetch.LimitOptions{Concurrency: DefaultOpenAPIConcurrency, Delay: DefaultOpenAPIDelay}
}

// Discover lists the JSON files carrying the configured prefix.
func (s *OpenAPISource) Discover(ctx context.Context) ([]core.DiscoveredItem, error) {
	files, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	var items []core.DiscoveredItem
	for _, f := range files {
		if f.Type != "file" || !strings.HasSuffix(f.Name, ".json") || !strings.HasPrefix(f.Name, s.cfg.FilePrefix) {
			continue
		}
		items = append(items, core.DiscoveredItem{Location: f.Name, ChangeSignal: f.SHA, Label: f.Name})
	}
	s.logger.Info("discovered openapi documents", "listed", len(files), "matched", len(items))
	return items, nil
}

// ShouldSkip uses the remote-hash strategy.
func (s *OpenAPISource) ShouldSkip(item core.DiscoveredItem, st State) bool {
	return cache.ShouldSkipByRemoteHash(st.Cache, item.Location, item.ChangeSignal, st.Force)
}

// Process downloads and parses one document.
func (s *OpenAPISource) Process(ctx context.Context, item core.DiscoveredItem, _ State) ([]core.ChunkDocument, *ItemResult, error) {
	raw, err := s.fetcher.FetchOne(ctx, s.rawURL(item.Location), fetch.WithAccept("application/json"))
	if err != nil {
		return nil, nil, err
	}

	doc, err := openapi3.NewLoader().LoadFromData([]byte(raw))
	if err != nil {
		return nil, nil, &core.ParseError{Source: item.Location, Err: err}
	}

	docs := OpenAPIDocuments(doc, item.Location, s.cfg)
	return docs, &ItemResult{Key: item.Location, Hash: cache.Hash(raw), RemoteHash: item.ChangeSignal}, nil
}

func (s *OpenAPISource) rawURL(file string) string {
	p := path.Join(s.cfg.GitHubRepo, s.cfg.Branch, s.cfg.Directory)
	return strings.TrimRight(s.opts.rawBaseURL, "/") + "/" + p + "/" + url.PathEscape(file)
}

var (
	dashRun     = regexp.MustCompile(`-+`)
	spacedDash  = regexp.MustCompile(`\s*-\s*`)
	escapedCRLF = strings.NewReplacer(`\r\n`, "\n", "\r\n", "\n")
)

// APISlug derives the documentation page slug from a file name.
func APISlug(file, prefix string) string {
	s := file
	if prefix != "" {
		s = strings.Replace(s, prefix, "", 1)
	}
	s = strings.Replace(s, ".json", "", 1)
	s = strings.ToLower(strings.TrimSpace(s))
	s = spacedDash.ReplaceAllString(s, "-")
	s = whitespaceRun.ReplaceAllString(s, "-")
	return dashRun.ReplaceAllString(s, "-")
}

// OpenAPIDocuments builds an overview document from the API description and
// one document per operation whose text exceeds the minimum length.
func OpenAPIDocuments(doc *openapi3.T, file string, cfg OpenAPIConfig) []core.ChunkDocument {
	var title, description string
	if doc.Info != nil {
		title = doc.Info.Title
		description = doc.Info.Description
	}
	apiURL := cfg.DocsBaseURL + "/" + APISlug(file, cfg.FilePrefix)
	fileHash := core.ShortHash(file, 8)

	var docs []core.ChunkDocument
	if description != "" {
		docs = append(docs, core.ChunkDocument{
			ID:     "openapi_" + fileHash + "_overview",
			Text:   "# " + title + "\n\n" + description,
			Source: title,
			URL:    apiURL,
		})
	}

	if doc.Paths == nil {
		return docs
	}
	pathItems := doc.Paths.Map()
	paths := make([]string, 0, len(pathItems))
	for p := range pathItems {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		item := pathItems[p]
		if item == nil {
			continue
		}
		for _, method := range operationMethods {
			op := operation(item, method)
			if op == nil {
				continue
			}
			text := EndpointText(strings.ToUpper(method), p, op, title)
			if len(text) <= minEndpointText {
				continue
			}

			summary := op.Summary
			if summary == "" {
				summary = p
			}
			sourceName := title + " - " + summary
			if len(op.Tags) > 0 {
				sourceName = title + " - " + strings.Join(op.Tags, "/") + " - " + summary
			}

			docs = append(docs, core.ChunkDocument{
				ID:     "openapi_" + fileHash + "_" + core.ShortHash(p+method, 8),
				Text:   text,
				Source: sourceName,
				URL:    apiURL + "#" + op.OperationID,
			})
		}
	}
	return docs
}

func operation(item *openapi3.PathItem, method string) *openapi3.Operation {
	switch method {
	case "get":
		return item.Get
	case "post":
		return item.Post
	case "put":
		return item.Put
	case "patch":
		return item.Patch
	case "delete":
		return item.Delete
	}
	return nil
}

// EndpointText renders an operation for indexing. The line
// "**Endpoint:** `METHOD /path`" is relied on for exact-match lookups.
func EndpointText(method, p string, op *openapi3.Operation, title string) string {
	var lines []string
	lines = append(lines, "# "+title)
	if op.Summary != "" {
		lines = append(lines, "## "+op.Summary)
	}
	if len(op.Tags) > 0 {
		lines = append(lines, "Category: "+strings.Join(op.Tags, ", "))
	}

	lines = append(lines, "", "**Endpoint:** `"+method+" "+p+"`", "")

	if op.Description != "" {
		lines = append(lines, escapedCRLF.Replace(op.Description), "")
	}

	if len(op.Parameters) > 0 {
		lines = append(lines, "### Parameters")
		for _, ref := range op.Parameters {
			if ref == nil || ref.Value == nil {
				continue
			}
			param := ref.Value
			required := "(optional)"
			if param.Required {
				required = "(required)"
			}
			desc := param.Description
			if desc == "" {
				desc = "No description"
			}
			lines = append(lines, fmt.Sprintf("- **%s** [%s] %s: %s", param.Name, param.In, required, desc))
		}
		lines = append(lines, "")
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil && op.RequestBody.Value.Description != "" {
		lines = append(lines, "### Request Body", op.RequestBody.Value.Description, "")
	}

	if op.Responses != nil {
		responses := op.Responses.Map()
		if len(responses) > 0 {
			lines = append(lines, "### Responses")
			codes := make([]string, 0, len(responses))
			for code := range responses {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				desc := "No description"
				if r := responses[code]; r != nil && r.Value != nil && r.Value.Description != nil && *r.Value.Description != "" {
					desc = *r.Value.Description
				}
				lines = append(lines, fmt.Sprintf("- **%s**: %s", code, desc))
			}
		}
	}

	return strings.Join(lines, "\n")
}
