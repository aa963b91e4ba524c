package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/docingest"
	"github.com/poiesic/docingest/batch"
	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/extract"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/ingestion"
	"github.com/poiesic/docingest/progress"
	"github.com/poiesic/docingest/source"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

// ingestFlags are shared by every ingestion command.
func ingestFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Ignore the cache and reprocess everything",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "List what would be processed without fetching or indexing",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Only process items containing this text",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Number of items processed at once (default depends on the source)",
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "Pause after each item, 0 disables pacing (default depends on the source)",
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Maximum HTTP requests per second, 0 for no limit",
		},
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "How long a content hash in the cache stays fresh",
			Value: cache.DefaultTTL,
		},
		&cli.IntFlag{
			Name:  "upsert-batch-size",
			Usage: "Number of documents written to the index at once",
			Value: ingestion.DefaultUpsertBatchSize,
		},
	}
	return append(flags, extra...)
}

func sitemapCommand() *cli.Command {
	return &cli.Command{
		Name:   "sitemap",
		Usage:  "Crawl the configured sitemaps",
		Action: sitemapAction,
		Flags: ingestFlags(
			&cli.BoolFlag{
				Name:  "process-only",
				Usage: "Only index shards left by an earlier run",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "Number of shard workers run at once",
				Value: batch.DefaultParallelism,
			},
			&cli.BoolFlag{
				Name:  "in-process",
				Usage: "Index shards in this process instead of worker processes",
			},
		),
	}
}

func urlsCommand() *cli.Command {
	return &cli.Command{
		Name:   "urls",
		Usage:  "Ingest the configured list of pages",
		Action: urlsAction,
		Flags:  ingestFlags(),
	}
}

func openapiCommand() *cli.Command {
	return &cli.Command{
		Name:   "openapi",
		Usage:  "Ingest OpenAPI documents from a GitHub repository",
		Action: openapiAction,
		Flags: ingestFlags(
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "GitHub token used to list the repository",
				EnvVars: []string{"GITHUB_TOKEN"},
			},
		),
	}
}

func manualCommand() *cli.Command {
	return &cli.Command{
		Name:   "manual",
		Usage:  "Ingest hand-written notes",
		Action: manualAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List what would be processed without indexing",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only process notes whose topic contains this text",
			},
		},
	}
}

func newFetcher(c *cli.Context) (*fetch.Fetcher, *extract.Extractor, error) {
	st := appState(c)
	opts := []fetch.Option{
		fetch.WithLogger(st.logger),
		fetch.WithAttemptObserver(st.recorder.FetchAttempt),
	}
	if limit := c.Float64("rate-limit"); limit > 0 {
		opts = append(opts, fetch.WithRateLimit(rate.Limit(limit), 1))
	}
	f, err := fetch.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	e, err := extract.New(extract.WithLogger(st.logger))
	if err != nil {
		return nil, nil, err
	}
	return f, e, nil
}

func pipelineOptions(c *cli.Context) []ingestion.Option {
	st := appState(c)
	opts := []ingestion.Option{
		ingestion.WithLogger(st.logger),
		ingestion.WithRecorder(st.recorder),
		ingestion.WithForce(c.Bool("force")),
		ingestion.WithDryRun(c.Bool("dry-run")),
	}
	if c.IsSet("concurrency") {
		opts = append(opts, ingestion.WithConcurrency(c.Int("concurrency")))
	}
	if c.IsSet("delay") {
		opts = append(opts, ingestion.WithDelay(c.Duration("delay")))
	}
	if c.IsSet("ttl") {
		opts = append(opts, ingestion.WithTTL(c.Duration("ttl")))
	}
	if c.IsSet("upsert-batch-size") {
		opts = append(opts, ingestion.WithUpsertBatchSize(c.Int("upsert-batch-size")))
	}
	return opts
}

// runSource runs src through a pipeline and prints the summary.
func runSource(c *cli.Context, ws *docingest.Workspace, src source.Source, store *cache.Store) error {
	client, err := ws.Index()
	if err != nil {
		return err
	}

	tracker := progress.NewTracker(c.App.ErrWriter, 0, 10, progress.WithLabel(src.Name()))
	opts := append(pipelineOptions(c),
		ingestion.WithFilter(c.String("filter")),
		ingestion.WithProgress(tracker.Observe),
	)
	p, err := ingestion.NewPipeline(client, store, opts...)
	if err != nil {
		return err
	}

	tracker.Start()
	summary, err := p.Run(c.Context, src)
	if tracker.Total() > 0 {
		tracker.Finish()
	}
	if summary != nil {
		_, _ = summary.WriteTo(c.App.ErrWriter)
	}
	return err
}

func urlsAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg, err := ws.LoadConfig(source.KindURLList)
	if err != nil {
		return err
	}
	store, err := ws.CacheStore(source.KindURLList)
	if err != nil {
		return err
	}
	f, e, err := newFetcher(c)
	if err != nil {
		return err
	}
	src, err := source.NewURLListSource(cfg.URLs, f, e, source.WithLogger(appState(c).logger))
	if err != nil {
		return err
	}
	return runSource(c, ws, src, store)
}

func openapiAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg, err := ws.LoadConfig(source.KindOpenAPI)
	if err != nil {
		return err
	}
	store, err := ws.CacheStore(source.KindOpenAPI)
	if err != nil {
		return err
	}
	lister, err := source.NewGitHubLister(c.Context, *cfg.OpenAPI, source.WithGitHubToken(c.String("github-token")))
	if err != nil {
		return err
	}
	f, _, err := newFetcher(c)
	if err != nil {
		return err
	}
	src, err := source.NewOpenAPISource(*cfg.OpenAPI, lister, f, source.WithLogger(appState(c).logger))
	if err != nil {
		return err
	}
	return runSource(c, ws, src, store)
}

func manualAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg, err := ws.LoadConfig(source.KindManual)
	if errors.Is(err, source.ErrConfigNotFound) {
		fmt.Fprintf(c.App.ErrWriter, "No %s found, skipping\n", ws.ConfigPath(source.KindManual))
		return nil
	}
	if err != nil {
		return err
	}
	src, err := source.NewManualSource(cfg.Manual)
	if err != nil {
		return err
	}
	return runSource(c, ws, src, nil)
}

func sitemapAction(c *cli.Context) error {
	st := appState(c)
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg, err := ws.LoadConfig(source.KindSitemap)
	if err != nil {
		return err
	}
	sitemaps := selectSitemaps(cfg.Sitemaps, c.String("filter"))
	if len(sitemaps) == 0 {
		return fmt.Errorf("no sitemap name contains %q", c.String("filter"))
	}

	store, err := ws.CacheStore(source.KindSitemap)
	if err != nil {
		return err
	}
	client, err := ws.Index()
	if err != nil {
		return err
	}
	f, e, err := newFetcher(c)
	if err != nil {
		return err
	}

	// The local index is held open by this process, so workers could not
	// open it.
	var runner batch.Runner
	if c.Bool("in-process") || ws.Backend() == docingest.BackendLocal {
		proc, err := batch.NewShardProcessor(client, batch.WithLogger(st.logger))
		if err != nil {
			return err
		}
		runner = batch.InProcessRunner{Processor: proc}
	} else {
		runner, err = batch.NewExecRunner(
			batch.WithArgs(globalArgs(c)...),
			batch.WithEnv(workerEnv(c)...),
		)
		if err != nil {
			return err
		}
	}

	opts := append(pipelineOptions(c),
		ingestion.WithProcessOnly(c.Bool("process-only")),
		ingestion.WithParallelism(c.Int("parallel")),
	)
	p, err := ingestion.NewPipeline(client, store, opts...)
	if err != nil {
		return err
	}

	for _, sm := range sitemaps {
		if c.IsSet("concurrency") {
			sm.Concurrency = c.Int("concurrency")
		}
		src, err := source.NewSitemapSource(sm, f, e, source.WithLogger(st.logger))
		if err != nil {
			return err
		}
		summary, err := p.SitemapRun(c.Context, src, ws.Paths().ShardDirFor(sm.Name), runner)
		if summary != nil {
			_, _ = summary.WriteTo(c.App.ErrWriter)
		}
		if err != nil {
			return fmt.Errorf("sitemap %q: %w", sm.Name, err)
		}
	}

	// Only succeeds once every sitemap's shards are gone.
	_ = os.Remove(ws.Paths().ShardDir)
	return nil
}

// selectSitemaps keeps the sitemaps whose name contains filter, ignoring case.
func selectSitemaps(all []source.SitemapConfig, filter string) []source.SitemapConfig {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return all
	}
	var out []source.SitemapConfig
	for _, sm := range all {
		if strings.Contains(strings.ToLower(sm.Name), filter) {
			out = append(out, sm)
		}
	}
	return out
}
