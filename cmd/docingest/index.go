package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/docingest"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/reembed"
	"github.com/poiesic/docingest/source"
	"github.com/urfave/cli/v2"
)

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show the number of documents in the index",
		Action: statsAction,
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Search the index",
		ArgsUsage: "<text>",
		Action:    queryAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Number of results",
				Value:   index.DefaultTopK,
			},
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:   "reset",
		Usage:  "Delete every document from the index and clear the caches",
		Action: resetAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "keep-cache",
				Usage: "Leave the cache files in place",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the reset",
			},
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the index is reachable",
		Action: healthAction,
	}
}

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Reembed every document of the local index with the configured model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of documents to process in each batch",
				Value: reembed.DefaultBatchSize,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N documents",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed operations",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
		},
	}
}

func statsAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	client, err := ws.Index()
	if err != nil {
		return err
	}
	stats, err := client.Stats(c.Context)
	if err != nil {
		return err
	}
	appState(c).recorder.IndexDocuments(stats.Count)
	fmt.Fprintf(c.App.Writer, "Collection: %s\nDocuments: %d\n", stats.Name, stats.Count)
	return nil
}

func queryAction(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return errors.New("query text is required")
	}
	if c.Int("top-k") < 1 {
		return errors.New("top-k must be greater than 0")
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	client, err := ws.Index()
	if err != nil {
		return err
	}
	results := client.Query(c.Context, text, c.Int("top-k"))
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(c.App.Writer, "[%d] %.3f %s\n", i+1, r.Score, r.Source)
		if r.URL != "" {
			fmt.Fprintf(c.App.Writer, "    %s\n", r.URL)
		}
		fmt.Fprintf(c.App.Writer, "    %s\n\n", preview(r.Text, 300))
	}
	return nil
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func resetAction(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("reset deletes every indexed document; pass --yes to confirm")
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	client, err := ws.Index()
	if err != nil {
		return err
	}
	if err := client.Reset(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.ErrWriter, "Index cleared")

	if c.Bool("keep-cache") {
		return nil
	}
	return clearCaches(c, ws)
}

// clearCaches removes the cache files and staged shards so the next run
// starts from scratch.
func clearCaches(c *cli.Context, ws *docingest.Workspace) error {
	paths := ws.Paths()
	var errs []error
	for _, kind := range source.Kinds {
		p := paths.For(kind).Cache
		if p == "" {
			continue
		}
		for _, f := range []string{p, p + ".lock"} {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	if err := os.RemoveAll(paths.ShardDir); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear caches: %w", err)
	}
	fmt.Fprintln(c.App.ErrWriter, "Caches cleared")
	return nil
}

func healthAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if chroma, ok := ws.Chroma(); ok {
		beat, err := chroma.Heartbeat(c.Context)
		if err != nil {
			return fmt.Errorf("chroma is not reachable: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "chroma ok (heartbeat %d)\n", beat)
		return nil
	}

	repo, err := ws.Repository()
	if err != nil {
		return err
	}
	count, err := repo.CountDocuments(c.Context)
	if err != nil {
		return fmt.Errorf("local index is not readable: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "local ok (%d documents)\n", count)
	return nil
}

func reembedAction(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	repo, err := ws.Repository()
	if err != nil {
		return err
	}
	embedder, err := ws.Embedder()
	if err != nil {
		return err
	}

	r, err := reembed.NewReembedder(repo, embedder, config, c.App.ErrWriter, appState(c).logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", ws.Paths().IndexDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embed-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embed-model"))
	fmt.Fprintln(c.App.ErrWriter)

	res, err := r.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Reembedded %d documents in %v\n", res.Documents, res.Elapsed.Round(time.Second))
	return nil
}
