package domain

import "errors"

var (
	// ErrInvalidArgument is returned when a required argument is missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrWorkerNotRegistered means no worker is registered for an order's kind.
	ErrWorkerNotRegistered = errors.New("worker not registered")

	// ErrWorkerMismatch means the registered worker cannot execute the order type.
	ErrWorkerMismatch = errors.New("worker does not accept order type")

	// ErrWorkerCycle means a worker constructor resolved its own kind, directly
	// or through other workers.
	ErrWorkerCycle = errors.New("worker dependency cycle")

	// ErrScopeClosed is returned when resolving from a scope that was closed.
	ErrScopeClosed = errors.New("scope closed")

	// ErrInvalidState is returned for a lifecycle transition that is not allowed.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrShutdownTimeout is returned when a graceful stop did not finish in time.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrCorruptRecord means a stored execution record could not be decoded.
	ErrCorruptRecord = errors.New("corrupt execution record")

	// ErrExecutionNotFound is a sentinel error returned when an execution record is not found.
	ErrExecutionNotFound = errors.New("execution record not found")
)
