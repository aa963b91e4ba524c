package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/metrics"
	"github.com/poiesic/docingest/source"
)

// DownloadSummary totals the download phase.
type DownloadSummary struct {
	// Shards lists the files written, in shard order.
	Shards     []string
	Downloaded int
	TooShort   int
	Errors     int
	// Failed lists the URLs that could not be fetched or extracted.
	Failed []string
}

// Downloader fetches pages of a sitemap into shard files.
type Downloader struct {
	src    *source.SitemapSource
	opts   options
	logger *slog.Logger
}

// NewDownloader creates a downloader for src.
func NewDownloader(src *source.SitemapSource, opts ...Option) (*Downloader, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	o := newOptions("shard-downloader", opts)
	return &Downloader{src: src, opts: o, logger: o.logger}, nil
}

// Download partitions items into shards, fetches and extracts each shard
// with the source's concurrency and delay, and writes the records long
// enough to index into dir. Shard numbers continue after any shard already
// in dir. Only a failure to write a shard, or cancellation, is an error.
func (d *Downloader) Download(ctx context.Context, items []core.DiscoveredItem, dir string) (DownloadSummary, error) {
	var summary DownloadSummary
	if len(items) == 0 {
		return summary, nil
	}

	num, err := NextShardNumber(dir)
	if err != nil {
		return summary, err
	}

	total := len(items)
	shardCount := (total + d.opts.shardSize - 1) / d.opts.shardSize
	d.logger.Info("downloading", "items", total, "shards", shardCount)

	done := 0
	limits := d.src.Limits()
	limits.Logger = d.logger
	if d.opts.onProgress != nil {
		limits.OnProgress = func(completed, _ int, id string, ok bool) {
			d.opts.onProgress(done+completed, total, id, ok)
		}
	}

	for start := 0; start < total; start += d.opts.shardSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		part := items[start:min(start+d.opts.shardSize, total)]

		outcomes := fetch.ProcessMany(ctx, part, func(ctx context.Context, item core.DiscoveredItem, _ int) (core.ShardRecord, error) {
			return d.src.Extract(ctx, item)
		}, limits)

		var recs []core.ShardRecord
		for i, o := range outcomes {
			switch {
			case o.Err == nil && len(o.Value.Text) >= MinRecordLength:
				recs = append(recs, o.Value)
			case o.Err == nil || errors.Is(o.Err, core.ErrExtractionTooShort):
				summary.TooShort++
				d.opts.recorder.Items(string(source.KindSitemap), metrics.OutcomeTooShort, 1)
			default:
				d.logger.Warn("download failed", "url", part[i].Location, "err", o.Err)
				summary.Errors++
				summary.Failed = append(summary.Failed, part[i].Location)
				d.opts.recorder.Items(string(source.KindSitemap), metrics.OutcomeError, 1)
			}
		}
		done += len(part)

		path, err := Write(dir, num, recs)
		if err != nil {
			return summary, fmt.Errorf("shard %d: %w", num, err)
		}
		if path != "" {
			summary.Shards = append(summary.Shards, path)
			summary.Downloaded += len(recs)
			num++
		}
	}

	d.logger.Info("download complete",
		"downloaded", summary.Downloaded,
		"shards", len(summary.Shards),
		"too_short", summary.TooShort,
		"errors", summary.Errors)
	return summary, nil
}
