/*
Package waypoint is a hierarchical state transition engine: a tree of named
states, and a router that moves between them through an observable,
interruptible transition lifecycle.

# Concept

States form a tree by their dotted names ("users", "users.detail"). The active
location of a router is a path from the root to one state, together with the
parameter values of every state on it. A transition computes the difference
between the current path and the target path (exiting, retained and entering
states), fetches the data each entering state needs (resolvables) and runs
registered hooks at every step. Hooks can cancel a transition, redirect it to
another state, or delay it until some asynchronous work completes.

# Key Features

  - Tree diffing: only the states that change are exited and entered.
  - Dependency-injected resolve data, eager or lazy, waited on or not.
  - Global and per-transition hooks, matched by state names, globs or expressions.
  - Superseding: a newer transition aborts the one still running.
  - Typed, URL-aware parameters with defaults, arrays and squash policies.
  - Pluggable persistence, HTTP inspection and Prometheus metrics.

# Usage

Declare states with the fluent builder in pkg/dsl (or load them from a file
with pkg/adapters/file) and create a Router:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/waypoint"
		"github.com/aretw0/waypoint/pkg/dsl"
	)

	func main() {
		ctx := context.Background()

		b := dsl.New()
		b.State("users").URL("/users")
		b.State("users.detail").URL("/{id:int}")

		r, err := waypoint.New(ctx, waypoint.WithStates(b.Declarations()...))
		if err != nil {
			log.Fatal(err)
		}
		defer r.Dispose()

		r.OnEnter(waypoint.HookCriteria{Entering: waypoint.Glob("users.*")},
			func(ctx context.Context, t *waypoint.Transition, s *waypoint.StateNode) (any, error) {
				fmt.Println("entering", s.Name, t.Params()["id"])
				return nil, nil
			})

		if _, err := r.TransitionTo(ctx, "users.detail", waypoint.Values{"id": 42}); err != nil {
			log.Fatal(err)
		}
	}

# Outcomes

TransitionTo returns the transition together with its error. A nil error
means the router is at the target (or already was, see IGNORED). Otherwise the
error is a *rejection.Rejection describing why the transition did not
complete: superseded, aborted, invalid or errored.
*/
package waypoint
