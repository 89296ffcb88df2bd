package waypoint

import (
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/rejection"
)

// Engine types, re-exported so that callers never import internal packages.
type (
	Engine          = runtime.Engine
	Transition      = runtime.Transition
	TransitionHook  = runtime.TransitionHook
	RegisteredHook  = runtime.RegisteredHook
	HookFn          = runtime.HookFn
	HookOption      = runtime.HookOption
	HookCriteria    = runtime.HookCriteria
	Criterion       = runtime.Criterion
	Predicate       = runtime.Predicate
	InvalidHandler  = runtime.InvalidHandler
	EventType       = runtime.EventType
	Globals         = runtime.Globals
	Trace           = runtime.Trace
	Category        = runtime.Category
	Declaration     = domain.Declaration
	StateNode       = domain.StateNode
	TargetState     = domain.TargetState
	ResolveDecl     = domain.ResolveDecl
	ResolvePolicy   = domain.ResolvePolicy
	Values          = params.Values
	Rejection       = rejection.Rejection
	RejectionType   = rejection.Type
	TransitionOpt   = domain.TransitionOption
	ViewDecl        = domain.ViewDecl
	ViewConfig      = domain.ViewConfig
	ViewService     = domain.ViewService
	DeclarationHook = domain.DeclHook
)

// Trace categories.
const (
	TraceTransition = runtime.CategoryTransition
	TraceHook       = runtime.CategoryHook
	TraceResolve    = runtime.CategoryResolve
	TraceViewConfig = runtime.CategoryViewConfig
)

// Hook criteria and options.
var (
	Always          = runtime.Always
	Glob            = runtime.Glob
	AnyOf           = runtime.AnyOf
	MatchExpr       = runtime.MatchExpr
	WithPriority    = runtime.WithPriority
	WithInvokeLimit = runtime.WithInvokeLimit
	WithHookName    = runtime.WithHookName
)

// Transition options.
var (
	Reload      = domain.WithReload
	ReloadState = domain.WithReloadState
	Inherit     = domain.WithInherit
	Relative    = domain.WithRelative
	Location    = domain.WithLocation
	Supersede   = domain.WithSupersede
	Custom      = domain.WithCustom
	Source      = domain.WithSource
)
