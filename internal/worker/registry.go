// internal/worker/registry.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"background-tasks/internal/domain"
)

// Constructor builds a worker inside an execution scope. It may resolve
// other kinds from the same scope.
type Constructor func(s *Scope) (any, error)

// Registry maps worker kinds to constructors and opens execution scopes.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// Ensure Registry implements domain.ScopeFactory.
var _ domain.ScopeFactory = (*Registry)(nil)

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a typed worker constructor under kind. Registering the same
// kind again replaces the previous constructor.
//
// This is a package-level generic function because Go does not allow
// generic methods.
func Register[W any](r *Registry, kind string, ctor func(s *Scope) (W, error)) error {
	if kind == "" {
		return fmt.Errorf("%w: worker kind cannot be empty", domain.ErrInvalidArgument)
	}
	if ctor == nil {
		return fmt.Errorf("%w: constructor for %q cannot be nil", domain.ErrInvalidArgument, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[kind] = func(s *Scope) (any, error) {
		return ctor(s)
	}
	return nil
}

// Kinds returns all registered worker kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) constructor(kind string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[kind]
	return c, ok
}

// NewScope opens a fresh execution scope.
func (r *Registry) NewScope(ctx context.Context) (domain.Scope, error) {
	return &Scope{
		ctx:       ctx,
		registry:  r,
		instances: make(map[string]any),
		resolving: make(map[string]struct{}),
	}, nil
}

// Scope caches the workers resolved for one execution and releases them on
// Close. A Scope is used by a single execution and is not safe for
// concurrent use.
type Scope struct {
	ctx       context.Context
	registry  *Registry
	instances map[string]any
	resolving map[string]struct{}
	order     []any
	closed    bool
}

// Context returns the context of the execution that owns the scope.
func (s *Scope) Context() context.Context { return s.ctx }

// Resolve returns the worker registered under kind, constructing it on first
// use within this scope.
func (s *Scope) Resolve(kind string) (any, error) {
	if s.closed {
		return nil, domain.ErrScopeClosed
	}
	if v, ok := s.instances[kind]; ok {
		return v, nil
	}

	ctor, ok := s.registry.constructor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrWorkerNotRegistered, kind)
	}
	if _, busy := s.resolving[kind]; busy {
		return nil, fmt.Errorf("%w: %q", domain.ErrWorkerCycle, kind)
	}
	s.resolving[kind] = struct{}{}
	v, err := ctor(s)
	delete(s.resolving, kind)
	if err != nil {
		return nil, fmt.Errorf("construct worker %q: %w", kind, err)
	}

	s.instances[kind] = v
	s.order = append(s.order, v)
	return v, nil
}

// Close releases every resolved instance that implements io.Closer, most
// recently resolved first. Calling Close more than once is a no-op.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		if c, ok := s.order[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.order = nil
	s.instances = nil
	return errors.Join(errs...)
}
