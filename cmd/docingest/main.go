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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/poiesic/docingest"
	"github.com/poiesic/docingest/ai"
	"github.com/poiesic/docingest/metrics"
	"github.com/urfave/cli/v2"
)

const (
	// runIDEnv carries the run ID from the parent to shard workers.
	runIDEnv = "DOCINGEST_RUN_ID"

	apiKeyEnv = "OPENAI_API_KEY"
)

// state is shared between the Before hook, the commands and the After hook.
type state struct {
	runID    string
	logger   *slog.Logger
	recorder *metrics.Recorder
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docingest",
		Usage: "Ingest documentation sites, API references and notes into a vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding source configuration, caches and shards",
				Value:   docingest.DefaultDataDir,
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index backend (chroma, local)",
				Value: docingest.BackendChroma,
			},
			&cli.StringFlag{
				Name:    "chroma-host",
				Usage:   "Chroma server URL",
				EnvVars: []string{"CHROMA_HOST"},
				Value:   "http://localhost:8000",
			},
			&cli.StringFlag{
				Name:  "embed-provider",
				Usage: "Embedding provider (ollama, openai)",
				Value: ai.ProviderOllama,
			},
			&cli.StringFlag{
				Name:    "embed-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"OLLAMA_HOST"},
				Value:   "http://localhost:11434",
			},
			&cli.StringFlag{
				Name:  "embed-model",
				Usage: "Embedding model name",
				Value: ai.DefaultModel,
			},
			&cli.StringFlag{
				Name:    "embed-api-key",
				Usage:   "API key for hosted OpenAI-compatible embedding services",
				EnvVars: []string{apiKeyEnv},
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write run metrics in Prometheus text format to this file",
			},
		},
		Before: setupLogger,
		After:  writeMetrics,
		Commands: []*cli.Command{
			sitemapCommand(),
			urlsCommand(),
			openapiCommand(),
			manualCommand(),
			statsCommand(),
			queryCommand(),
			resetCommand(),
			healthCommand(),
			reembedCommand(),
			processShardCommand(),
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	runID := os.Getenv(runIDEnv)
	if runID == "" {
		runID = uuid.NewString()
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	})).With("run_id", runID)
	slog.SetDefault(logger)

	st := &state{runID: runID, logger: logger}
	if c.String("metrics-file") != "" {
		st.recorder = metrics.NewRecorder()
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata["state"] = st
	return nil
}

func writeMetrics(c *cli.Context) error {
	st := appState(c)
	path := c.String("metrics-file")
	if path == "" || st.recorder == nil {
		return nil
	}
	if err := st.recorder.WriteTextfile(path); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func appState(c *cli.Context) *state {
	if st, ok := c.App.Metadata["state"].(*state); ok {
		return st
	}
	return &state{logger: slog.Default()}
}

// openWorkspace builds the workspace from the global flags.
func openWorkspace(c *cli.Context) (*docingest.Workspace, error) {
	aiConfig := ai.NewConfig(
		ai.WithProvider(c.String("embed-provider")),
		ai.WithHost(c.String("embed-host")),
		ai.WithModel(c.String("embed-model")),
		ai.WithAPIKey(c.String("embed-api-key")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	ws, err := docingest.OpenWorkspace(c.String("data-dir"),
		docingest.WithIndexBackend(c.String("index")),
		docingest.WithAIConfig(aiConfig),
		docingest.WithChromaHost(c.String("chroma-host")),
		docingest.WithLogger(appState(c).logger),
	)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// globalArgs repeats the global flags for a shard worker.
func globalArgs(c *cli.Context) []string {
	var args []string
	for _, name := range []string{"log-level", "data-dir", "index", "chroma-host", "embed-provider", "embed-host", "embed-model"} {
		args = append(args, "--"+name, c.String(name))
	}
	return args
}

// workerEnv is the environment added for a shard worker. The API key is
// passed here rather than on the command line.
func workerEnv(c *cli.Context) []string {
	env := []string{runIDEnv + "=" + appState(c).runID}
	if key := c.String("embed-api-key"); key != "" {
		env = append(env, apiKeyEnv+"="+key)
	}
	return env
}
