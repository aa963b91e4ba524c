package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultRawBaseURL = "https://raw.githubusercontent.com"
	githubTimeout     = 30 * time.Second
)

// RemoteFile is one file of a repository listing.
type RemoteFile struct {
	Name string
	Type string
	SHA  string
}

// Lister lists the files of a repository directory.
type Lister interface {
	List(ctx context.Context) ([]RemoteFile, error)
}

// GitHubLister lists a repository directory through the GitHub contents API.
type GitHubLister struct {
	client  *gh.Client
	owner   string
	repo    string
	ref     string
	dir     string
	limiter *rate.Limiter
}

type githubOptions struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// GitHubOption configures a GitHubLister.
type GitHubOption func(*githubOptions)

// WithGitHubToken authenticates requests with a static token.
func WithGitHubToken(token string) GitHubOption {
	return func(o *githubOptions) {
		o.token = token
	}
}

// WithGitHubBaseURL points the client at another API endpoint.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(o *githubOptions) {
		o.baseURL = u
	}
}

// WithGitHubHTTPClient replaces the HTTP client. Ignored when a token is set.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(o *githubOptions) {
		o.httpClient = c
	}
}

// WithGitHubRateLimit bounds the request rate against the API.
func WithGitHubRateLimit(limit rate.Limit, burst int) GitHubOption {
	return func(o *githubOptions) {
		o.limiter = rate.NewLimiter(limit, max(burst, 1))
	}
}

// NewGitHubLister creates a lister for cfg's repository, branch and directory.
func NewGitHubLister(ctx context.Context, cfg OpenAPIConfig, opts ...GitHubOption) (*GitHubLister, error) {
	o := githubOptions{
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if o.token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = githubTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: githubTimeout}
	}

	client := gh.NewClient(httpClient)
	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubLister{
		client:  client,
		owner:   cfg.Owner(),
		repo:    cfg.Repo(),
		ref:     cfg.Branch,
		dir:     cfg.Directory,
		limiter: o.limiter,
	}, nil
}

// List returns the directory entries sorted by name.
func (l *GitHubLister) List(ctx context.Context) ([]RemoteFile, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var opts *gh.RepositoryContentGetOptions
	if l.ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: l.ref}
	}
	file, dir, _, err := l.client.Repositories.GetContents(ctx, l.owner, l.repo, l.dir, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", l.owner, l.repo, err)
	}
	if file != nil {
		return nil, fmt.Errorf("list %s/%s: %q is a file, not a directory", l.owner, l.repo, l.dir)
	}

	files := make([]RemoteFile, 0, len(dir))
	for _, c := range dir {
		files = append(files, RemoteFile{Name: c.GetName(), Type: c.GetType(), SHA: c.GetSHA()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
