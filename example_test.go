package waypoint_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
)

func stateList(states []*waypoint.StateNode) string {
	var names []string
	for _, s := range states {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return "[" + strings.Join(names, " ") + "]"
}

// ExampleNew shows the basic loop: declare states, create a router and move
// between them.
func ExampleNew() {
	ctx := context.Background()

	b := dsl.New()
	b.State("home").URL("/")
	b.State("users").URL("/users")
	b.State("users.detail").URL("/{id:int}")

	r, err := waypoint.New(ctx, waypoint.WithStates(b.Declarations()...))
	if err != nil {
		log.Fatal(err)
	}
	defer r.Dispose()

	t, err := r.TransitionTo(ctx, "users.detail", waypoint.Values{"id": 42})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("entered", stateList(t.Entering()))

	t, err = r.TransitionTo(ctx, "home", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("exited", stateList(t.Exiting()), "entered", stateList(t.Entering()))

	// Output:
	// entered [users users.detail]
	// exited [users.detail users] entered [home]
}

// ExampleNew_loader demonstrates loading declarations from a ports.StateLoader
// and guarding a state with a hook.
func ExampleNew_loader() {
	ctx := context.Background()

	loader, err := memory.NewLoader(
		&domain.Declaration{Name: "public"},
		&domain.Declaration{Name: "admin", Data: map[string]any{"secure": true}},
		&domain.Declaration{Name: "login"},
	)
	if err != nil {
		log.Fatal(err)
	}

	r, err := waypoint.New(ctx, waypoint.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}
	defer r.Dispose()

	secure := waypoint.Predicate(func(s *waypoint.StateNode, _ *waypoint.Transition) bool {
		return s.Data["secure"] == true
	})
	r.OnBefore(waypoint.HookCriteria{To: secure}, func(_ context.Context, t *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
		return t.Engine().Target("login", nil)
	})

	t, err := r.TransitionTo(ctx, "admin", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("now at", r.Current().Name, "redirected from", t.RedirectedFrom().To().Name)

	// Output:
	// now at login redirected from admin
}

// ExampleRunner drives a router from a script.
func ExampleRunner() {
	ctx := context.Background()

	b := dsl.New()
	b.State("a")
	b.State("a.b")
	b.State("c")

	r, err := waypoint.New(ctx, waypoint.WithStates(b.Declarations()...))
	if err != nil {
		log.Fatal(err)
	}
	defer r.Dispose()

	script := strings.NewReader("a.b\n.\nc\n")
	runner := waypoint.NewRunner(script, os.Stdout)
	runner.Headless = true
	if err := runner.Run(ctx, r); err != nil {
		log.Fatal(err)
	}

	// Output:
	// success   a.b entering=[a a.b] exiting=[] retained=[]
	// ignored   a.b entering=[] exiting=[] retained=[a a.b]
	// success   c entering=[c] exiting=[a.b a] retained=[]
}
