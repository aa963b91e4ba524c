package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/poiesic/docingest/core"
)

// ProcessShardCommand is the hidden CLI command a worker process runs.
const ProcessShardCommand = "process-shard"

// maxStderr bounds the worker stderr kept in a WorkerFailure.
const maxStderr = 200

// Runner processes one shard, typically in isolation from the caller.
type Runner interface {
	Run(ctx context.Context, shardPath, sourceName string) (WorkerResult, error)
}

// InProcessRunner runs the processor in the calling process.
type InProcessRunner struct {
	Processor *ShardProcessor
}

var _ Runner = InProcessRunner{}

// Run processes the shard directly.
func (r InProcessRunner) Run(ctx context.Context, shardPath, sourceName string) (WorkerResult, error) {
	return r.Processor.Process(ctx, shardPath, sourceName)
}

// ExecRunner runs every shard in a child process, so memory growth from
// embedding a large shard ends with the process.
//
// The child is invoked as
//
//	<executable> <args...> process-shard --source-name <name> <shard>
//
// and must print its WorkerResult as a single JSON line on stdout.
type ExecRunner struct {
	executable string
	args       []string
	env        []string
}

var _ Runner = (*ExecRunner)(nil)

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithExecutable replaces the binary to run. Default is the running binary.
func WithExecutable(path string) ExecOption {
	return func(r *ExecRunner) {
		r.executable = path
	}
}

// WithArgs sets arguments placed before the command, such as global flags.
func WithArgs(args ...string) ExecOption {
	return func(r *ExecRunner) {
		r.args = args
	}
}

// WithEnv adds environment variables on top of the parent's environment.
func WithEnv(env ...string) ExecOption {
	return func(r *ExecRunner) {
		r.env = env
	}
}

// NewExecRunner creates a runner re-executing the current binary.
func NewExecRunner(opts ...ExecOption) (*ExecRunner, error) {
	r := &ExecRunner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		r.executable = exe
	}
	return r, nil
}

// Run starts the worker and waits for it. A non-zero exit or output that
// is not a WorkerResult yields a *core.WorkerFailure.
func (r *ExecRunner) Run(ctx context.Context, shardPath, sourceName string) (WorkerResult, error) {
	args := append(slices.Clone(r.args), ProcessShardCommand, "--source-name", sourceName, shardPath)
	cmd := exec.CommandContext(ctx, r.executable, args...)
	cmd.Env = append(os.Environ(), r.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return WorkerResult{}, &core.WorkerFailure{
			Shard:    shardPath,
			ExitCode: exitCode,
			Stderr:   truncate(stderr.String(), maxStderr),
			Err:      err,
		}
	}

	result, err := ParseWorkerOutput(stdout.Bytes())
	if err != nil {
		return WorkerResult{}, &core.WorkerFailure{
			Shard:  shardPath,
			Stderr: truncate(stderr.String(), maxStderr),
			Err:    err,
		}
	}
	return result, nil
}

// WriteWorkerResult prints res the way ExecRunner expects it.
func WriteWorkerResult(w io.Writer, res WorkerResult) error {
	return json.NewEncoder(w).Encode(res)
}

// ParseWorkerOutput decodes the last non-empty line of a worker's stdout.
func ParseWorkerOutput(out []byte) (WorkerResult, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return WorkerResult{}, errors.New("worker produced no output")
	}

	var res WorkerResult
	if err := json.Unmarshal(last, &res); err != nil {
		return WorkerResult{}, fmt.Errorf("unparseable worker output: %w", err)
	}
	return res, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
