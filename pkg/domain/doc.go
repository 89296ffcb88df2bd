/*
Package domain contains the model of the state tree and of the paths a
transition moves between.

It is kept pure: no logging, persistence or hook machinery lives here. The
transition engine in internal/runtime drives these types.

# Key Entities

  - StateNode: a registered state, built from a user Declaration.
  - PathNode: one occurrence of a state in a path, with param values and resolvables.
  - Resolvable: a memoized, asynchronous value with declared dependencies.
  - ResolveContext: scopes resolution to a path prefix and injects dependencies.
  - TreeChanges: the retained, entering and exiting nodes between two paths (see Diff).
  - TargetState: an immutable, possibly invalid, transition destination.
  - Snapshot: the persisted location of a router session.
*/
package domain
