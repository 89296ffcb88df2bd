package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// StateLoader supplies state declarations from an external source (files,
// memory, a database). Declarations may arrive in any order: children before
// parents are queued by the registry.
type StateLoader interface {
	Load(ctx context.Context) ([]*domain.Declaration, error)
}

// StateLoaderFunc adapts a function to StateLoader.
type StateLoaderFunc func(ctx context.Context) ([]*domain.Declaration, error)

func (f StateLoaderFunc) Load(ctx context.Context) ([]*domain.Declaration, error) { return f(ctx) }
