package http

import (
	"background-tasks/internal/domain"
	"background-tasks/internal/orderspec"
)

// SubmitOrderRequest is the Data Transfer Object for submitting a work order.
type SubmitOrderRequest struct {
	Kind    string            `json:"kind" validate:"required,oneof=http shell"`
	URL     string            `json:"url" validate:"required_if=Kind http,omitempty,url"`
	Method  string            `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD get post put patch delete head"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	Command string            `json:"command" validate:"required_if=Kind shell"`
}

// ToWorkOrder converts a SubmitOrderRequest DTO to a work order.
func (r *SubmitOrderRequest) ToWorkOrder() (domain.WorkOrder, error) {
	return orderspec.Build(orderspec.Spec{
		Kind:    r.Kind,
		URL:     r.URL,
		Method:  r.Method,
		Body:    r.Body,
		Headers: r.Headers,
		Command: r.Command,
	})
}

// SubmitOrderResponse is returned once an order has been queued.
type SubmitOrderResponse struct {
	OrderID    string `json:"order_id"`
	WorkerKind string `json:"worker_kind"`
}
