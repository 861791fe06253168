// internal/infra/shell/command_worker.go
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"background-tasks/internal/domain"
	"background-tasks/internal/worker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Kind is the worker kind that runs shell commands.
const Kind = "shell"

const DefaultTimeout = 30 * time.Second

// CommandOrder asks for a shell command to be run with bash -c.
type CommandOrder struct {
	domain.Meta
	Command string `json:"command"`
}

// NewCommandOrder creates a command order.
func NewCommandOrder(command string) (*CommandOrder, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command cannot be empty", domain.ErrInvalidArgument)
	}
	return &CommandOrder{Meta: domain.NewMeta(), Command: command}, nil
}

// WorkerKind implements domain.WorkOrder.
func (o *CommandOrder) WorkerKind() string { return Kind }

// ExecuteWith implements domain.WorkOrder.
func (o *CommandOrder) ExecuteWith(ctx context.Context, r domain.Resolver) error {
	return domain.Execute(ctx, r, o)
}

// CommandWorker runs CommandOrders.
type CommandWorker struct {
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewCommandWorker creates a worker that kills commands running longer
// than timeout. A non-positive timeout means DefaultTimeout.
func NewCommandWorker(timeout time.Duration, logger *slog.Logger) *CommandWorker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandWorker{
		timeout: timeout,
		logger:  logger.With("worker_kind", Kind),
		tracer:  otel.Tracer("background-tasks-shell-worker"),
	}
}

// Register adds w to the registry under Kind.
func Register(r *worker.Registry, w *CommandWorker) error {
	return worker.Register(r, Kind, func(*worker.Scope) (*CommandWorker, error) {
		return w, nil
	})
}

// Run executes command and returns its combined output. stderr, if any, is
// placed before stdout.
func (w *CommandWorker) Run(ctx context.Context, command string) (string, error) {
	ctx, span := w.tracer.Start(ctx, "worker.shell.Run",
		trace.WithAttributes(attribute.String("shell.command", command)))
	defer span.End()

	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	// Children of bash can hold the output pipes open after bash is killed.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	errOutput := stderr.String()

	if output != "" {
		span.SetAttributes(attribute.String("shell.stdout", output))
	}
	if errOutput != "" {
		span.SetAttributes(attribute.String("shell.stderr", errOutput))
		if output != "" {
			output = fmt.Sprintf("[STDERR]:\n%s\n[STDOUT]:\n%s", errOutput, output)
		} else {
			output = fmt.Sprintf("[STDERR]:\n%s", errOutput)
		}
	}

	if err != nil {
		span.SetStatus(codes.Error, "shell command failed")
		span.RecordError(err)
		if ctxErr := execCtx.Err(); ctxErr != nil {
			return output, fmt.Errorf("shell command failed: %w", ctxErr)
		}
		return output, fmt.Errorf("shell command failed: %w", err)
	}
	return output, nil
}

// DoWork implements domain.Worker.
func (w *CommandWorker) DoWork(ctx context.Context, order *CommandOrder) error {
	w.logger.Info("executing shell command", "command", order.Command, "order_id", order.OrderID())

	output, err := w.Run(ctx, order.Command)
	if err != nil {
		w.logger.Warn("shell command failed", "order_id", order.OrderID(), "output", output, "error", err)
		return err
	}

	w.logger.Info("shell command executed successfully", "order_id", order.OrderID(), "output", output)
	return nil
}
