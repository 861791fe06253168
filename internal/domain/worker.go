package domain

import "context"

// Resolver supplies worker instances by kind.
type Resolver interface {
	Resolve(kind string) (any, error)
}

// Scope is an isolated lifetime for the dependencies of a single execution.
// Workers resolved from one scope are never shared with another.
type Scope interface {
	Resolver
	// Close releases everything resolved through the scope.
	Close() error
}

// ScopeFactory opens execution scopes.
type ScopeFactory interface {
	NewScope(ctx context.Context) (Scope, error)
}
