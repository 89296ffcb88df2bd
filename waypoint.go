package waypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/internal/validator"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/registry"
)

// Version is the release of the module, overridden at build time with
// -ldflags "-X github.com/aretw0/waypoint.Version=...".
var Version = "0.1.0-dev"

// Router is the high-level entry point of the library: a state registry, the
// transition engine and its hook registry behind a single value.
//
// All engine operations (TransitionTo, Go, Reload, Target, Is, Includes,
// OnBefore ... OnError, OnInvalid, Dispose) are promoted from the embedded
// engine.
type Router struct {
	*runtime.Engine

	Name string

	mu      sync.Mutex
	plugins []Plugin
	native  domain.NativeInjector
}

// Plugin extends a router, usually by registering hooks. Install runs once,
// when the plugin is added.
type Plugin interface {
	Name() string
	Install(r *Router) error
}

type config struct {
	name       string
	logger     *slog.Logger
	squash     any
	types      []params.Type
	loader     ports.StateLoader
	decls      []*domain.Declaration
	plugins    []Plugin
	native     domain.NativeInjector
	engineOpts []runtime.Option
}

// Option defines a functional option for configuring the Router.
type Option func(*config)

// WithName sets a descriptive label, added to every log record as "router_name".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets a custom structured logger for the router.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHistoryLimit bounds the transition history queues. Defaults to 1.
func WithHistoryLimit(n int) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithHistoryLimit(n))
	}
}

// WithDefaultResolvePolicy sets the policy of resolvables that declare none.
func WithDefaultResolvePolicy(p domain.ResolvePolicy) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithDefaultResolvePolicy(p))
	}
}

// WithViewService sets the sink of view lifecycle calls.
func WithViewService(v domain.ViewService) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithViewService(v))
	}
}

// WithInjector sets the fallback injector for resolve dependencies that no
// resolvable provides.
func WithInjector(n domain.NativeInjector) Option {
	return func(c *config) {
		c.native = n
		c.engineOpts = append(c.engineOpts, runtime.WithInjector(n))
	}
}

// WithTrace enables trace categories. No categories enables all of them.
func WithTrace(categories ...Category) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithTrace(categories...))
	}
}

// WithID sets the router id. It defaults to a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithID(id))
	}
}

// WithErrorHandler replaces the default transition error handler.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithErrorHandler(fn))
	}
}

// WithDefaultSquashPolicy sets how optional URL params equal to their default
// render: false, true, or a replacement string.
func WithDefaultSquashPolicy(policy any) Option {
	return func(c *config) {
		c.squash = policy
	}
}

// WithParamTypes registers custom parameter types, usable by name in
// declarations and URL patterns ("{id:slug}").
func WithParamTypes(types ...params.Type) Option {
	return func(c *config) {
		c.types = append(c.types, types...)
	}
}

// WithLoader registers the declarations of l when the router is created.
func WithLoader(l ports.StateLoader) Option {
	return func(c *config) {
		c.loader = l
	}
}

// WithStates registers declarations when the router is created.
func WithStates(decls ...*domain.Declaration) Option {
	return func(c *config) {
		c.decls = append(c.decls, decls...)
	}
}

// WithPlugins installs plugins when the router is created.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *config) {
		c.plugins = append(c.plugins, plugins...)
	}
}

// New initializes a Router.
func New(ctx context.Context, opts ...Option) (*Router, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.name != "" {
		cfg.logger = cfg.logger.With("router_name", cfg.name)
	}

	factory := params.NewFactory()
	if cfg.squash != nil {
		policy, err := params.ParseSquashPolicy(cfg.squash)
		if err != nil {
			return nil, fmt.Errorf("default squash policy: %w", err)
		}
		factory.DefaultSquash = policy
	}
	for _, t := range cfg.types {
		factory.Types.Define(t)
	}

	reg := registry.New(registry.WithParamFactory(factory), registry.WithLogger(cfg.logger))
	engineOpts := append([]runtime.Option{
		runtime.WithLogger(cfg.logger),
		runtime.WithRegistry(reg),
	}, cfg.engineOpts...)

	r := &Router{
		Engine: runtime.NewEngine(engineOpts...),
		Name:   cfg.name,
		native: cfg.native,
	}

	decls := cfg.decls
	if cfg.loader != nil {
		loaded, err := cfg.loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load states: %w", err)
		}
		decls = append(slices.Clone(decls), loaded...)
	}
	if err := r.Register(decls...); err != nil {
		return nil, err
	}

	for _, p := range cfg.plugins {
		if err := r.Use(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds declarations to the state tree. Declarations whose parent is
// still missing afterwards are reported as an error.
func (r *Router) Register(decls ...*domain.Declaration) error {
	var errs []error
	for _, d := range decls {
		if _, err := r.Registry().Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	if pending := r.Registry().Pending(); len(pending) > 0 {
		errs = append(errs, fmt.Errorf("states with unregistered parents: %v", pending))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to build state tree: %w", err)
	}
	return nil
}

// States returns every registered state except the root, sorted by name.
func (r *Router) States() []*domain.StateNode {
	return r.Registry().All()
}

// Validate checks the registered tree for redirects to missing or abstract
// states, redirect loops, resolve dependencies that nothing provides and
// abstract states without children.
func (r *Router) Validate() error {
	core := map[domain.Token]bool{
		domain.TokenTransition:  true,
		domain.TokenStateParams: true,
		domain.TokenState:       true,
		domain.TokenRouter:      true,
		runtime.TokenEngine:     true,
		runtime.TokenTransition: true,
	}
	return validator.ValidateTree(r.States(), func(tok domain.Token) bool {
		if core[tok] {
			return true
		}
		if r.native != nil {
			_, ok := r.native.Get(tok)
			return ok
		}
		return false
	})
}

// Use installs a plugin. Plugin names are unique per router.
func (r *Router) Use(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.plugins, func(x Plugin) bool { return x.Name() == p.Name() }) {
		return fmt.Errorf("plugin %q already installed", p.Name())
	}
	if err := p.Install(r); err != nil {
		return fmt.Errorf("failed to install plugin %q: %w", p.Name(), err)
	}
	r.plugins = append(r.plugins, p)
	r.Logger().Debug("plugin installed", "plugin", p.Name())
	return nil
}

// Plugin returns the installed plugin with name, or nil.
func (r *Router) Plugin(name string) Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
