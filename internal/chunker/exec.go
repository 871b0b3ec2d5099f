package chunker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dkeller/facetidx/pkg/types"
)

// chunkerResponse is the wire shape the external chunker writes to stdout:
// either a chunked file or an error report. Non-JSON or empty stdout is
// folded into the same failure shape.
type chunkerResponse struct {
	Filename string         `json:"filename,omitempty"`
	Chunks   []*types.Chunk `json:"chunks,omitempty"`
	Error    string         `json:"error,omitempty"`
	Output   string         `json:"output,omitempty"`
}

// ExecChunker invokes an external command per file. The file path is passed
// as the final argument; the command's stdout carries the JSON response.
type ExecChunker struct {
	command string
	args    []string
}

// NewExec creates a chunker that spawns command with args for each file.
func NewExec(command string, args ...string) *ExecChunker {
	return &ExecChunker{command: command, args: args}
}

// Chunkify runs the external chunker for one file.
func (c *ExecChunker) Chunkify(ctx context.Context, path string) (*types.ChunkedFile, error) {
	args := append(append([]string{}, c.args...), path)
	cmd := exec.CommandContext(ctx, c.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := strings.TrimSpace(stdout.String())

	if out == "" {
		if runErr != nil {
			return nil, fmt.Errorf("%w: %s: %v: %s", ErrChunkerFailed, path, runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: %s: empty output", ErrChunkerFailed, path)
	}

	var resp chunkerResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		// Non-JSON output is treated as the failure shape with the raw
		// output preserved for the log.
		return nil, fmt.Errorf("%w: %s: non-JSON output: %s", ErrChunkerFailed, path, truncate(out, 512))
	}

	if resp.Error != "" {
		if resp.Output != "" {
			return nil, fmt.Errorf("%w: %s: %s: %s", ErrChunkerFailed, path, resp.Error, truncate(resp.Output, 512))
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrChunkerFailed, path, resp.Error)
	}

	if runErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChunkerFailed, path, runErr)
	}

	file := &types.ChunkedFile{Filename: resp.Filename, Chunks: resp.Chunks}
	if file.Filename == "" {
		file.Filename = path
	}
	for _, chunk := range file.Chunks {
		if chunk.Filename == "" {
			chunk.Filename = file.Filename
		}
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid chunk: %v", ErrChunkerFailed, path, err)
		}
	}
	return file, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
