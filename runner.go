package waypoint

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/rejection"
)

// Runner drives a router from line-oriented input and reports every
// transition to an output. This allows scripted simulations and interactive
// sessions over any reader/writer pair (CLI, tests).
//
// Each input line is one command:
//
//	<state> [json params]   transition to state; relative refs ("^.sibling") use Go
//	reload [state]          reload everything, or state and its descendants
//	state                   print the active state and params
//	exit | quit             stop
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	// StopOnError ends the run at the first failed transition.
	StopOnError bool
}

// Outcome summarizes a single transition for reporting.
type Outcome struct {
	Transition string   `json:"transition,omitempty"`
	State      string   `json:"state"`
	Params     Values   `json:"params,omitempty"`
	Entering   []string `json:"entering"`
	Exiting    []string `json:"exiting"`
	Retained   []string `json:"retained"`
	Result     string   `json:"result"`
	Error      string   `json:"error,omitempty"`
}

// NewRunner creates a Runner over in and out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run executes commands until the input ends or an exit command.
func (r *Runner) Run(ctx context.Context, router *Router) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewScanner(r.Input)

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- waypoint runner ---")
	}
	for {
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		}
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		}

		out, err := r.Exec(ctx, router, line)
		if err != nil && !isOutcome(err) {
			return err
		}
		fmt.Fprintln(r.Output, out)
		if err != nil && r.StopOnError {
			return err
		}
	}
}

type outcomeError struct{ error }

func (e outcomeError) Unwrap() error { return e.error }

func isOutcome(err error) bool {
	var oe outcomeError
	return errors.As(err, &oe)
}

// Exec runs one command and returns the text to print. Failed transitions
// return their outcome together with the error.
func (r *Runner) Exec(ctx context.Context, router *Router, line string) (string, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "state":
		return fmt.Sprintf("%s %s", router.Current().Name, jsonValues(router.Params())), nil
	case "reload":
		var ref any
		if rest != "" {
			ref = rest
		}
		t, err := router.Reload(ctx, ref)
		return report(Summarize(t, err), err)
	}

	var vals params.Values
	if rest != "" {
		if err := json.Unmarshal([]byte(rest), &vals); err != nil {
			return "", fmt.Errorf("invalid params for %q: %w", cmd, err)
		}
	}
	var (
		t   *Transition
		err error
	)
	if strings.HasPrefix(cmd, ".") || strings.HasPrefix(cmd, "^") {
		t, err = router.Go(ctx, cmd, vals)
	} else {
		t, err = router.TransitionTo(ctx, cmd, vals)
	}
	return report(Summarize(t, err), err)
}

func report(o Outcome, err error) (string, error) {
	text := fmt.Sprintf("%-9s %s entering=%v exiting=%v retained=%v", o.Result, o.State, o.Entering, o.Exiting, o.Retained)
	if err != nil {
		return text + " error=" + o.Error, outcomeError{err}
	}
	return text, nil
}

// Summarize describes the outcome of a transition. t may be nil when the
// transition could not be created.
func Summarize(t *Transition, err error) Outcome {
	o := Outcome{Result: "success", Entering: []string{}, Exiting: []string{}, Retained: []string{}}
	if t != nil {
		o.Transition = t.String()
		o.State = t.To().Name
		o.Params = t.Params()
		o.Entering = stateNames(t.Entering())
		o.Exiting = stateNames(t.Exiting())
		o.Retained = stateNames(t.Retained())
		if rej, ok := rejection.As(t.Err()); ok && rej.Type == rejection.Ignored {
			o.Result = "ignored"
		}
	}
	if err != nil {
		o.Result = "error"
		if rej, ok := rejection.As(err); ok {
			o.Result = strings.ToLower(rej.Type.String())
		}
		o.Error = err.Error()
	}
	return o
}

func stateNames(states []*domain.StateNode) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		if s.Name != "" {
			out = append(out, s.Name)
		}
	}
	return out
}

func jsonValues(v params.Values) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(map[string]any(v))
	}
	return string(b)
}
