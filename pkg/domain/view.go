package domain

import "context"

// ViewDecl declares a view a state renders when active.
type ViewDecl struct {
	Name      string         `mapstructure:"name" json:"name" yaml:"name"`
	Component string         `mapstructure:"component" json:"component,omitempty" yaml:"component,omitempty"`
	Config    map[string]any `mapstructure:"config" json:"config,omitempty" yaml:"config,omitempty"`
}

// ViewConfig is a view declaration bound to the path it was created for.
type ViewConfig interface {
	Decl() ViewDecl
	Path() []*PathNode
	// Load prepares the view, for example fetching a template.
	Load(ctx context.Context) error
	Loaded() bool
}

// ViewService receives view lifecycle calls from transitions. It decides how
// views render; the router only tells it which configs are active.
type ViewService interface {
	CreateViewConfig(path []*PathNode, decl ViewDecl) []ViewConfig
	ActivateViewConfig(cfg ViewConfig)
	DeactivateViewConfig(cfg ViewConfig)
	Sync()
}
