package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// WorkerConfig holds configuration for the subprocess worker engine.
type WorkerConfig struct {
	PythonBin    string        // default: "python3"
	Script       string        // required: path to the model worker script
	ModelID      string        // required: model identifier passed to the worker
	Device       string        // default: "cpu"
	StartTimeout time.Duration // default: 5 minutes
	StopGrace    time.Duration // default: 10 seconds
}

// WorkerLoader launches a Python model worker subprocess per load. The
// process is the handle: the loaded model's memory lives in the child, and
// disposing the handle terminates the process, which reclaims it all at
// once. Requests and responses are line-delimited JSON over stdin/stdout.
type WorkerLoader struct {
	cfg    WorkerConfig
	logger *slog.Logger
}

// NewWorkerLoader creates a WorkerLoader with defaults applied.
func NewWorkerLoader(cfg WorkerConfig, logger *slog.Logger) *WorkerLoader {
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 5 * time.Minute
	}
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerLoader{cfg: cfg, logger: logger}
}

func (l *WorkerLoader) Name() string { return "worker" }

// Load starts the worker process and blocks until it reports that the model
// is in memory, or fails. A failed start leaves nothing behind; Load is
// safe to call again immediately.
func (l *WorkerLoader) Load(ctx context.Context, key string) (Handle, error) {
	if l.cfg.Script == "" {
		return nil, fmt.Errorf("worker script path is required")
	}
	if l.cfg.ModelID == "" {
		return nil, fmt.Errorf("worker model id is required")
	}

	cmd := exec.Command(l.cfg.PythonBin, "-u", l.cfg.Script,
		"--model", l.cfg.ModelID, "--device", l.cfg.Device)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	h := &workerHandle{
		key:       key,
		cmd:       cmd,
		stdin:     stdin,
		stdoutRaw: stdout,
		stdout:    bufio.NewReader(stdout),
		grace:     l.cfg.StopGrace,
		logger:    l.logger,
	}
	go h.drainStderr(stderr)

	if err := h.awaitReady(ctx, l.cfg.StartTimeout); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

type workerHandle struct {
	key       string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdoutRaw io.ReadCloser
	stdout    *bufio.Reader
	grace     time.Duration
	logger    *slog.Logger

	// One invocation in flight at a time: the worker reads one request
	// line and writes one response line, so the pipe pair is not safe for
	// interleaved use. This also makes the handle safe for concurrent
	// callers, which the slot design otherwise leaves to the backend.
	mu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// awaitReady consumes startup lines until the worker reports the model is
// loaded. The worker emits {"event":"ready"} once weights are in memory.
func (h *workerHandle) awaitReady(ctx context.Context, timeout time.Duration) error {
	type readResult struct {
		out workerOutput
		err error
	}
	ch := make(chan readResult, 1)
	go func() {
		for {
			var out workerOutput
			if err := h.readLine(&out); err != nil {
				ch <- readResult{err: err}
				return
			}
			if out.Event == "ready" || out.Error != "" {
				ch <- readResult{out: out}
				return
			}
			// Progress lines (download, tokenizer init) are informational.
			h.logger.Debug("worker startup", "key", h.key, "event", out.Event)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("worker exited during load: %w", r.err)
		}
		if r.out.Error != "" {
			return fmt.Errorf("worker load failed: %s", r.out.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("worker not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Synthesize sends one request line and reads one response line.
func (h *workerHandle) Synthesize(ctx context.Context, req Request) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	line = append(line, '\n')
	if _, err := h.stdin.Write(line); err != nil {
		return nil, fmt.Errorf("write to worker: %w", err)
	}

	var out workerOutput
	if err := h.readLine(&out); err != nil {
		return nil, fmt.Errorf("read from worker: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("worker: %s", out.Error)
	}
	return out.result()
}

func (h *workerHandle) readLine(out *workerOutput) error {
	raw, err := h.stdout.ReadBytes('\n')
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed worker output: %w", err)
	}
	return nil
}

// Close terminates the worker: stdin EOF asks it to exit, SIGTERM follows,
// and after the grace period the process is killed outright. The child's
// exit is what actually releases the model's memory, so Close does not
// return until the process is gone.
func (h *workerHandle) Close() error {
	h.closeOnce.Do(func() {
		h.stdin.Close()
		// Unblock any goroutine still reading worker output (a failed
		// or timed-out load) before Wait tears the pipes down.
		h.stdoutRaw.Close()
		h.cmd.Process.Signal(syscall.SIGTERM)

		done := make(chan error, 1)
		go func() { done <- h.cmd.Wait() }()

		select {
		case err := <-done:
			// A non-zero exit after SIGTERM is the expected outcome.
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				h.closeErr = err
			}
		case <-time.After(h.grace):
			h.cmd.Process.Kill()
			h.closeErr = fmt.Errorf("worker for %q killed after %s grace", h.key, h.grace)
			<-done
		}
	})
	return h.closeErr
}

func (h *workerHandle) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		h.logger.Debug("worker stderr", "key", h.key, "line", sc.Text())
	}
}
