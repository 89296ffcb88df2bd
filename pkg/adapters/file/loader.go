package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Loader implements ports.StateLoader over a state document on disk. The
// file is read again on every Load.
type Loader struct {
	Path   string
	Format Format
}

// NewLoader creates a loader for path, guessing the format from its extension.
func NewLoader(path string) *Loader {
	return &Loader{Path: path, Format: FormatOf(path)}
}

// Document reads and parses the file.
func (l *Loader) Document() (*Document, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	doc, err := Parse(data, l.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return doc, nil
}

// Load returns the declarations of the file.
func (l *Loader) Load(ctx context.Context) ([]*domain.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := l.Document()
	if err != nil {
		return nil, err
	}
	return doc.Declarations()
}

// Open reads a state file and returns router options carrying both its
// settings and its states, ready for waypoint.New.
func Open(path string) ([]waypoint.Option, error) {
	l := NewLoader(path)
	doc, err := l.Document()
	if err != nil {
		return nil, err
	}
	opts, err := doc.Router.Options()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	decls, err := doc.Declarations()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return append(opts, waypoint.WithStates(decls...)), nil
}
