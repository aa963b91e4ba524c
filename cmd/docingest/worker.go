package main

import (
	"errors"

	"github.com/poiesic/docingest/batch"
	"github.com/urfave/cli/v2"
)

// processShardCommand is run by the sitemap command in a child process for
// each shard. It prints one JSON line with the result on stdout.
func processShardCommand() *cli.Command {
	return &cli.Command{
		Name:      batch.ProcessShardCommand,
		Usage:     "Index one shard file (internal)",
		ArgsUsage: "<shard>",
		Hidden:    true,
		Action:    processShardAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source-name",
				Usage:    "Sitemap name used as the source of the chunks",
				Required: true,
			},
		},
	}
}

func processShardAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("shard path is required")
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
	proc, err := batch.NewShardProcessor(client, batch.WithLogger(appState(c).logger))
	if err != nil {
		return err
	}

	res, err := proc.Process(c.Context, path, c.String("source-name"))
	if err != nil {
		return err
	}
	return batch.WriteWorkerResult(c.App.Writer, res)
}
