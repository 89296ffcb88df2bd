package domain

import "errors"

var (
	// ErrStateNotFound is returned when a state reference does not resolve to a registered state.
	ErrStateNotFound = errors.New("state not found")

	// ErrDuplicateState is returned when a state name is registered twice.
	ErrDuplicateState = errors.New("state already registered")

	// ErrDuplicateParam is returned when a state declares the same parameter twice.
	ErrDuplicateParam = errors.New("duplicate parameter")

	// ErrTokenNotFound is returned when a resolve dependency matches no resolvable
	// and the native injector does not know it either.
	ErrTokenNotFound = errors.New("could not find Dependency Injection token")

	// ErrResolveNotComplete is returned by Injector.Get for a resolvable that has not resolved yet.
	ErrResolveNotComplete = errors.New("resolvable async get not complete")

	// ErrInvalidTarget is returned when a transition is created for a target that is not valid.
	ErrInvalidTarget = errors.New("invalid target state")

	// ErrTooManyRedirects is returned when a redirect chain grows past the limit.
	ErrTooManyRedirects = errors.New("too many consecutive redirects")

	// ErrRouterDisposed is returned by operations on a router that has been stopped.
	ErrRouterDisposed = errors.New("router has been disposed")

	// ErrSnapshotNotFound is returned when a session ID has no saved snapshot in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
