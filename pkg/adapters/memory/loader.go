package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Loader implements ports.StateLoader over declarations held in memory.
type Loader struct {
	mu    sync.RWMutex
	decls []*domain.Declaration
	names map[string]bool
}

// NewLoader creates a loader from declarations. Names must be set and unique.
func NewLoader(decls ...*domain.Declaration) (*Loader, error) {
	l := &Loader{names: make(map[string]bool)}
	for _, d := range decls {
		if err := l.Add(d); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends a declaration.
func (l *Loader) Add(decl *domain.Declaration) error {
	if decl == nil || decl.Name == "" {
		return fmt.Errorf("declaration missing name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.names[decl.Name] {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateState, decl.Name)
	}
	l.names[decl.Name] = true
	l.decls = append(l.decls, decl)
	return nil
}

// Load returns the declarations in the order they were added.
func (l *Loader) Load(_ context.Context) ([]*domain.Declaration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.decls), nil
}
