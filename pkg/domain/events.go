package domain

// Tracer receives resolve events. The router's trace facility implements it.
type Tracer interface {
	TraceResolvePath(path []*PathNode, when When, trans Transition)
	TraceResolvableResolved(r *Resolvable, trans Transition)
}
