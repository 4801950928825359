package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker writes body as a shell script standing in for the Python
// model worker, so the subprocess protocol can be exercised end to end.
func fakeWorker(t *testing.T, body string) WorkerConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-based worker stub")
	}
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return WorkerConfig{
		PythonBin:    "/bin/sh",
		Script:       path,
		ModelID:      "stub/model",
		StartTimeout: 5 * time.Second,
		StopGrace:    2 * time.Second,
	}
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWorkerLoadSynthesizeClose(t *testing.T) {
	payload := encodeF32([]float32{0.25, -0.25})
	cfg := fakeWorker(t, `
echo '{"event":"ready"}'
while read line; do
  echo '{"pcm":"`+payload+`","sample_rate":12000}'
done
`)

	loader := NewWorkerLoader(cfg, testLogger())
	h, err := loader.Load(context.Background(), "design")
	require.NoError(t, err)

	res, err := h.Synthesize(context.Background(), Request{Text: "hello", Language: "English"})
	require.NoError(t, err)
	assert.Equal(t, 12000, res.SampleRate)
	assert.InDeltaSlice(t, []float32{0.25, -0.25}, res.PCM, 1e-6)

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close(), "Close is idempotent")
}

func TestWorkerLoadReportsModelError(t *testing.T) {
	cfg := fakeWorker(t, `
echo '{"error":"weights not found"}'
`)

	loader := NewWorkerLoader(cfg, testLogger())
	_, err := loader.Load(context.Background(), "design")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights not found")
}

func TestWorkerLoadExitBeforeReady(t *testing.T) {
	cfg := fakeWorker(t, `exit 1`)

	loader := NewWorkerLoader(cfg, testLogger())
	_, err := loader.Load(context.Background(), "design")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker exited during load")
}

func TestWorkerSynthesizeError(t *testing.T) {
	cfg := fakeWorker(t, `
echo '{"event":"ready"}'
while read line; do
  echo '{"error":"reference audio unreadable"}'
done
`)

	loader := NewWorkerLoader(cfg, testLogger())
	h, err := loader.Load(context.Background(), "1.7b-clone")
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Synthesize(context.Background(), Request{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference audio unreadable")
}

func TestWorkerLoadStartTimeout(t *testing.T) {
	// The worker never prints a ready banner; Load must give up at the
	// start timeout and tear the process down promptly, including the
	// goroutine still blocked reading its stdout.
	cfg := fakeWorker(t, `sleep 5`)
	cfg.StartTimeout = 100 * time.Millisecond

	loader := NewWorkerLoader(cfg, testLogger())
	start := time.Now()
	_, err := loader.Load(context.Background(), "design")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
	assert.Less(t, time.Since(start), 3*time.Second,
		"teardown must not wait out the sleeping worker")
}

func TestWorkerLoadValidatesConfig(t *testing.T) {
	loader := NewWorkerLoader(WorkerConfig{ModelID: "m"}, testLogger())
	_, err := loader.Load(context.Background(), "design")
	assert.Error(t, err, "script path required")

	loader = NewWorkerLoader(WorkerConfig{Script: "w.py"}, testLogger())
	_, err = loader.Load(context.Background(), "design")
	assert.Error(t, err, "model id required")
}
