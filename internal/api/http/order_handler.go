// internal/api/http/order_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"background-tasks/internal/config"
	"background-tasks/internal/domain"
	"background-tasks/internal/infra/shell"
	"background-tasks/internal/metrics"
	"background-tasks/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderHandler serves the producer API: submitting work orders and reading
// execution history.
type OrderHandler struct {
	service  *usecase.OrderService
	metrics  *metrics.Metrics
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer

	allowShell bool
}

// HandlerOption configures an OrderHandler.
type HandlerOption func(*OrderHandler)

// WithShellOrders controls whether POST /orders accepts shell orders. They
// are refused by default.
func WithShellOrders(allow bool) HandlerOption {
	return func(h *OrderHandler) { h.allowShell = allow }
}

// NewOrderHandler creates a new OrderHandler. m may be nil.
func NewOrderHandler(service *usecase.OrderService, m *metrics.Metrics, logger *slog.Logger, opts ...HandlerOption) *OrderHandler {
	h := &OrderHandler{
		service:  service,
		metrics:  m,
		logger:   logger.With("component", "order-handler"),
		validate: config.NewValidator(),
		tracer:   otel.Tracer("background-tasks-api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the order routes on mux. Requests with a method
// the pattern does not allow get 405 from the mux itself.
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /orders", h.instrument("/orders", h.handleSubmitOrder))
	mux.Handle("GET /executions/{kind}", h.instrument("/executions/{kind}", h.handleListExecutions))
	mux.Handle("GET /executions/{kind}/{id}", h.instrument("/executions/{kind}/{id}", h.handleGetExecution))
}

func (h *OrderHandler) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r.WithContext(ctx))

		if h.metrics != nil {
			h.metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()
		}

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleSubmitOrder handles POST /orders.
func (h *OrderHandler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.SubmitOrder")
	defer span.End()

	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				validationErrors = append(validationErrors,
					"Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.",
				)
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Validation failed",
			"details": validationErrors,
		})
		return
	}

	if req.Kind == shell.Kind && !h.allowShell {
		span.SetStatus(codes.Error, "Shell orders disabled")
		h.logger.Warn("rejected shell order from API", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "shell orders are disabled on this API; enable http_api.allow_shell or use a schedule",
		})
		return
	}

	order, err := req.ToWorkOrder()
	if err != nil {
		span.SetStatus(codes.Error, "Invalid work order")
		span.RecordError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("order.id", order.OrderID()), attribute.String("worker.kind", order.WorkerKind()))

	if err := h.service.Submit(ctx, order); err != nil {
		span.SetStatus(codes.Error, "Failed to submit work order")
		span.RecordError(err)
		h.logger.Error("error submitting work order", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitOrderResponse{OrderID: order.OrderID(), WorkerKind: order.WorkerKind()})
}

// handleListExecutions handles GET /executions/{kind}?page=&pageSize=.
func (h *OrderHandler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListExecutions")
	defer span.End()

	kind := r.PathValue("kind")
	span.SetAttributes(attribute.String("worker.kind", kind))

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	history, err := h.service.ListHistory(ctx, kind, page, pageSize)
	if err != nil {
		h.logger.Error("error listing execution history", "worker_kind", kind, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []*domain.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleGetExecution handles GET /executions/{kind}/{id}.
func (h *OrderHandler) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetExecution")
	defer span.End()

	kind, id := r.PathValue("kind"), r.PathValue("id")
	span.SetAttributes(attribute.String("worker.kind", kind), attribute.String("execution.id", id))

	record, err := h.service.GetExecution(ctx, kind, id)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to get execution record")
		span.RecordError(err)
		h.logger.Warn("error getting execution record", "worker_kind", kind, "execution_id", id, "error", err)
		if errors.Is(err, domain.ErrExecutionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, record)
}
