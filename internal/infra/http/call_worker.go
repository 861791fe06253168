package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"background-tasks/internal/domain"
	"background-tasks/internal/worker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Kind is the worker kind that executes outbound HTTP calls.
const Kind = "http"

const (
	DefaultTimeout = 15 * time.Second

	// maxResponseLog caps how much of the response body is kept for logs.
	maxResponseLog = 1024
)

// CallOrder asks for a single outbound HTTP request.
type CallOrder struct {
	domain.Meta
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewCallOrder creates a call order. An empty method means GET.
func NewCallOrder(method, rawURL, body string, headers map[string]string) (*CallOrder, error) {
	if method == "" {
		method = http.MethodGet
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrInvalidArgument, rawURL)
	}
	return &CallOrder{
		Meta:    domain.NewMeta(),
		URL:     rawURL,
		Method:  strings.ToUpper(method),
		Body:    body,
		Headers: headers,
	}, nil
}

// WorkerKind implements domain.WorkOrder.
func (o *CallOrder) WorkerKind() string { return Kind }

// ExecuteWith implements domain.WorkOrder.
func (o *CallOrder) ExecuteWith(ctx context.Context, r domain.Resolver) error {
	return domain.Execute(ctx, r, o)
}

// CallWorker performs CallOrders. Requests are made once; a response status
// of 400 or above is an error.
type CallWorker struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Config configures the HTTP worker. A zero RateLimit disables limiting.
type Config struct {
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// NewCallWorker creates a worker. The client and limiter are shared by every
// scope that resolves it.
func NewCallWorker(cfg Config, logger *slog.Logger) *CallWorker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	w := &CallWorker{
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("worker_kind", Kind),
		tracer: otel.Tracer("background-tasks-http-worker"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w
}

// Register adds w to the registry under Kind.
func Register(r *worker.Registry, w *CallWorker) error {
	return worker.Register(r, Kind, func(*worker.Scope) (*CallWorker, error) {
		return w, nil
	})
}

// DoWork implements domain.Worker.
func (w *CallWorker) DoWork(ctx context.Context, order *CallOrder) error {
	ctx, span := w.tracer.Start(ctx, "worker.http.DoWork",
		trace.WithAttributes(
			attribute.String("order.id", order.OrderID()),
			attribute.String("http.method", order.Method),
			attribute.String("http.url", order.URL),
		))
	defer span.End()

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter wait failed")
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var body io.Reader
	if order.Body != "" {
		body = strings.NewReader(order.Body)
	}
	req, err := http.NewRequestWithContext(ctx, order.Method, order.URL, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return fmt.Errorf("failed to create http request: %w", err)
	}
	for k, v := range order.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http request failed")
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	// The body is only logged, so a failed read does not fail the order.
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseLog))
	if readErr != nil {
		span.SetAttributes(attribute.Bool("http.response_body_truncated", true))
		w.logger.Debug("failed to read http response body", "order_id", order.OrderID(), "error", readErr)
	}

	if resp.StatusCode >= 500 {
		err := fmt.Errorf("http request returned 5xx server error: %s", resp.Status)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("http request returned 4xx client error: %s", resp.Status)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	w.logger.Debug("http call completed", "order_id", order.OrderID(), "status", resp.StatusCode, "response", string(bodyBytes))
	return nil
}
