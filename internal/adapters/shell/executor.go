// Package shell provides the step command executor.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// Execute runs spec.Command through its shell. The spec environment is
// passed to the process as-is; the shell binary is resolved against the
// PATH inside that environment, so provisioned toolchains win over the
// host.
//
// Output goes to the spec writers when set, else to the vertex carried by
// the context, else line-wise to the logger.
func (e *Executor) Execute(ctx context.Context, spec ports.ExecSpec) error {
	if strings.TrimSpace(spec.Command) == "" {
		return nil
	}

	shellName := spec.Shell
	if shellName == "" {
		shellName = "sh"
	}

	executable := shellName
	if !filepath.IsAbs(shellName) {
		if lp, err := lookPath(shellName, spec.Env); err == nil {
			executable = lp
		}
	}

	e.logger.Debug(fmt.Sprintf("executing step command via %s", shellName))

	cmd := exec.CommandContext(ctx, executable, "-c", spec.Command) //nolint:gosec // workflow provided command
	// exec.CommandContext sets Args[0] to the executable path; keep the
	// shell name as invoked.
	cmd.Args[0] = shellName
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	stdout, stderr := e.outputs(ctx, spec)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	flushLines(stdout)
	flushLines(stderr)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
	}

	return nil
}

// outputs picks the step's output sinks: explicit spec writers first, then
// the context vertex, then the logger.
func (e *Executor) outputs(ctx context.Context, spec ports.ExecSpec) (io.Writer, io.Writer) {
	stdout, stderr := spec.Stdout, spec.Stderr
	if stdout == nil || stderr == nil {
		if v, ok := ports.VertexFromContext(ctx); ok {
			if stdout == nil {
				stdout = v.Stdout()
			}
			if stderr == nil {
				stderr = v.Stderr()
			}
		}
	}
	if stdout == nil {
		stdout = &logWriter{logger: e.logger}
	}
	if stderr == nil {
		stderr = &logWriter{logger: e.logger, iserr: true}
	}
	return stdout, stderr
}

func flushLines(w io.Writer) {
	if lw, ok := w.(*logWriter); ok {
		lw.Flush()
	}
}

// logWriter forwards process output to the logger one line at a time,
// buffering partial writes until a newline arrives.
type logWriter struct {
	logger ports.Logger
	iserr  bool
	buf    bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(strings.TrimSuffix(line, "\n"))
	}
}

// Flush emits any buffered partial line.
func (w *logWriter) Flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	if w.iserr {
		w.logger.Error(zerr.New(line))
		return
	}
	w.logger.Info(line)
}

// lookPath searches for an executable in the directories named by the PATH
// entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
