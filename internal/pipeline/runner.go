package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/SherwinAllen/styx/internal/acquisition"
)

// Result is the outcome of one step subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner launches one external step as a subprocess, streams its output
// line-by-line into a sink as it arrives, and reports the exit outcome.
// The subprocess handle is registered in the job record before start and
// removed only after Wait confirms the exit, so cancellation always sees
// live handles.
type Runner struct {
	store  *acquisition.Store
	logger *slog.Logger
}

// NewRunner creates a step runner bound to the job record store.
func NewRunner(store *acquisition.Store, logger *slog.Logger) *Runner {
	return &Runner{store: store, logger: logger}
}

// Run executes argv with the given extra environment. Lines from stdout and
// stderr are delivered to sink incrementally; some steps run for minutes and
// challenge detection cannot wait for exit. A non-zero exit is reported in
// Result, not as an error; the error return is for launch failures only.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID, step acquisition.Step, argv []string, env []string, sink func(line string)) (Result, error) {
	if len(argv) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("step %s: empty command", step)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("step %s: stdout pipe: %w", step, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("step %s: stderr pipe: %w", step, err)
	}

	// Register the handle before the process starts so a cancellation that
	// races with startup still finds it.
	if err := r.store.Mutate(jobID, func(j *acquisition.Job) { j.AddRunning(cmd) }); err != nil {
		return Result{ExitCode: -1}, err
	}

	if err := cmd.Start(); err != nil {
		r.store.Mutate(jobID, func(j *acquisition.Job) { j.RemoveRunning(cmd) })
		return Result{ExitCode: -1}, fmt.Errorf("step %s: start: %w", step, err)
	}

	// Server shutdown safety net. The two-phase cancellation path signals
	// the process itself; this only covers the whole daemon going away.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		case <-watchDone:
		}
	}()

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go r.scanLines(stdout, &outBuf, sink, &wg)
	go r.scanLines(stderr, &errBuf, sink, &wg)

	// Pipes must be drained before Wait.
	wg.Wait()
	waitErr := cmd.Wait()
	close(watchDone)

	// Exit confirmed; only now may cancellation stop waiting on this handle.
	r.store.Mutate(jobID, func(j *acquisition.Job) { j.RemoveRunning(cmd) })

	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			return res, fmt.Errorf("step %s: wait: %w", step, waitErr)
		}
	}
	return res, nil
}

func (r *Runner) scanLines(src io.Reader, buf *strings.Builder, sink func(string), wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "\x00") {
			line = strings.ReplaceAll(line, "\x00", "")
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if sink != nil {
			sink(line)
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("step output scan ended early", "error", err)
	}
}
