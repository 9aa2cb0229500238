// Package sandbox runs accepted robot code outside the generation loop.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ExceptionInfo describes a python exception raised during execution.
type ExceptionInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ExecutionResult is the outcome of running one code artifact.
type ExecutionResult struct {
	Success     bool           `json:"success"`
	Output      string         `json:"output"`
	ErrorOutput string         `json:"error_output"`
	Exception   *ExceptionInfo `json:"exception,omitempty"`
}

// Executor runs one code artifact and reports the result. Execution
// failures are captured in the result; the error return is reserved for
// failures to run at all.
type Executor interface {
	Execute(ctx context.Context, code string) (ExecutionResult, error)
}

// LocalPython executes artifacts with a local python interpreter. It
// stands in for the robot connection during development.
type LocalPython struct {
	Interpreter string
	Timeout     time.Duration
}

// NewLocalPython constructs a LocalPython executor.
func NewLocalPython(interpreter string, timeout time.Duration) *LocalPython {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LocalPython{Interpreter: interpreter, Timeout: timeout}
}

// Execute writes the code to a temp file and runs it with a wall-clock
// timeout.
func (p *LocalPython) Execute(ctx context.Context, code string) (ExecutionResult, error) {
	dir, err := os.MkdirTemp("", "geno-exec-")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("create exec dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	scriptPath := filepath.Join(dir, "artifact.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o644); err != nil {
		return ExecutionResult{}, fmt.Errorf("write artifact: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Interpreter, scriptPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	log.Info().
		Str("interpreter", p.Interpreter).
		Dur("duration", time.Since(start)).
		Bool("success", runErr == nil).
		Msg("artifact executed")

	result := ExecutionResult{
		Success:     runErr == nil,
		Output:      stdout.String(),
		ErrorOutput: stderr.String(),
	}
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Exception = &ExceptionInfo{Type: "TimeoutError", Message: "execution exceeded the configured timeout"}
			return result, nil
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Exception = parseException(stderr.String())
			return result, nil
		}
		return ExecutionResult{}, fmt.Errorf("run interpreter: %w", runErr)
	}
	return result, nil
}

// parseException pulls the exception type and message from the last
// line of a python traceback.
func parseException(stderr string) *ExceptionInfo {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "File ") {
			continue
		}
		if name, msg, ok := strings.Cut(line, ": "); ok && !strings.Contains(name, " ") {
			return &ExceptionInfo{Type: name, Message: msg}
		}
		return &ExceptionInfo{Type: "Exception", Message: line}
	}
	return &ExceptionInfo{Type: "Exception", Message: "execution failed"}
}

// Gate wraps an Executor so at most one caller holds the robot at a
// time. Acquisition is scoped to a single Execute call and released on
// every path.
type Gate struct {
	mu    sync.Mutex
	inner Executor
}

// NewGate wraps an executor with exclusive access.
func NewGate(inner Executor) *Gate {
	return &Gate{inner: inner}
}

// Execute runs the artifact while holding the gate.
func (g *Gate) Execute(ctx context.Context, code string) (ExecutionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Execute(ctx, code)
}
