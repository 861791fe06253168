package shell

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"background-tasks/internal/domain"
	"background-tasks/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T, timeout time.Duration) *CommandWorker {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	return NewCommandWorker(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCommandWorker_Run(t *testing.T) {
	w := newTestWorker(t, time.Second)

	out, err := w.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = w.Run(context.Background(), "echo oops >&2; echo fine")
	require.NoError(t, err)
	assert.Equal(t, "[STDERR]:\noops\n\n[STDOUT]:\nfine\n", out)
}

func TestCommandWorker_Failure(t *testing.T) {
	w := newTestWorker(t, time.Second)

	_, err := w.Run(context.Background(), "exit 3")
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestCommandWorker_Timeout(t *testing.T) {
	w := newTestWorker(t, 50*time.Millisecond)

	start := time.Now()
	_, err := w.Run(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandOrder_ExecuteThroughRegistry(t *testing.T) {
	w := newTestWorker(t, time.Second)
	reg := worker.NewRegistry()
	require.NoError(t, Register(reg, w))

	scope, err := reg.NewScope(context.Background())
	require.NoError(t, err)
	defer scope.Close()

	order, err := NewCommandOrder("true")
	require.NoError(t, err)
	assert.Equal(t, Kind, order.WorkerKind())
	require.NoError(t, order.ExecuteWith(context.Background(), scope))

	failing, err := NewCommandOrder("false")
	require.NoError(t, err)
	assert.Error(t, failing.ExecuteWith(context.Background(), scope))
}

func TestNewCommandOrder_Empty(t *testing.T) {
	_, err := NewCommandOrder("   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
