package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/glob"
	"github.com/aretw0/waypoint/pkg/rejection"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodySize bounds POST bodies.
const maxBodySize = 1 << 20

// Event is a settled transition, as streamed on /events.
type Event struct {
	ID int64 `json:"id"`
	waypoint.Outcome
}

// StateInfo describes a registered state.
type StateInfo struct {
	Name     string         `json:"name"`
	Parent   string         `json:"parent"`
	URL      string         `json:"url,omitempty"`
	Abstract bool           `json:"abstract,omitempty"`
	Params   []string       `json:"params"`
	Data     map[string]any `json:"data,omitempty"`
}

// GoRequest is the body of POST /go. Either To or URL must be set.
type GoRequest struct {
	To     string          `json:"to"`
	URL    string          `json:"url"`
	Params waypoint.Values `json:"params"`
	// Relative resolves To from the active state and inherits its params.
	Relative bool `json:"relative"`
	Reload   bool `json:"reload"`
}

// Server exposes a router over HTTP: inspection, driving and a stream of
// settled transitions.
type Server struct {
	Router  *waypoint.Router
	Streams *StreamManager

	logger *slog.Logger
	detach []func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over r and starts streaming its transitions.
func NewServer(r *waypoint.Router, opts ...Option) *Server {
	s := &Server{Router: r, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	publish := func(_ context.Context, t *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
		s.publish(t)
		return nil, nil
	}
	s.detach = append(s.detach,
		r.OnSuccess(waypoint.HookCriteria{}, publish, waypoint.WithHookName("http:events")),
		r.OnError(waypoint.HookCriteria{}, publish, waypoint.WithHookName("http:events")),
	)
	return s
}

// NewHandler creates a new HTTP handler for the router.
func NewHandler(r *waypoint.Router, opts ...Option) http.Handler {
	return NewServer(r, opts...).Handler()
}

// Close stops streaming transitions.
func (s *Server) Close() {
	for _, fn := range s.detach {
		fn()
	}
	s.detach = nil
}

func (s *Server) publish(t *waypoint.Transition) {
	if s.Streams.Len() == 0 {
		return
	}
	ev := Event{ID: t.ID(), Outcome: waypoint.Summarize(t, t.Err())}
	msg, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Event encode failed", "err", err)
		return
	}
	s.Streams.Broadcast(ev, msg)
}

// Handler returns the chi router serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/states", s.GetStates)
	r.Get("/state", s.GetState)
	r.Get("/transitions", s.GetTransitions)
	r.Get("/match", s.GetMatch)
	r.Post("/go", s.PostGo)
	r.Get("/events", s.SubscribeEvents)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.Router.Disposed() {
		status, code = "disposed", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": status})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":       "waypoint-http",
		"version":   strings.TrimSpace(waypoint.Version),
		"router_id": s.Router.ID(),
		"name":      s.Router.Name,
	})
}

// GetStates handles the GET /states request.
func (s *Server) GetStates(w http.ResponseWriter, _ *http.Request) {
	states := s.Router.States()
	out := make([]StateInfo, 0, len(states))
	for _, st := range states {
		info := StateInfo{
			Name:     st.Name,
			Abstract: st.Abstract,
			Params:   []string{},
			Data:     st.Data,
		}
		if st.Parent != nil {
			info.Parent = st.Parent.Name
		}
		if st.URL != nil {
			info.URL = st.URL.Pattern()
		}
		for _, p := range st.Parameters(true) {
			info.Params = append(info.Params, p.ID)
		}
		out = append(out, info)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, _ *http.Request) {
	cur := s.Router.Current()
	resp := map[string]any{
		"state":  cur.Name,
		"params": s.Router.Params(),
	}
	if cur.URL != nil {
		if href, err := s.Router.Href(cur, nil); err == nil {
			resp["href"] = href
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetTransitions handles the GET /transitions request.
func (s *Server) GetTransitions(w http.ResponseWriter, _ *http.Request) {
	g := s.Router.Globals()
	describe := func(ts []*waypoint.Transition) []string {
		out := make([]string, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.String())
		}
		return out
	}
	resp := map[string]any{
		"history":    describe(g.TransitionHistory.Items()),
		"successful": describe(g.SuccessfulTransitions.Items()),
	}
	if t := g.Transition(); t != nil {
		resp["running"] = t.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetMatch handles the GET /match?path=... request: the state a URL maps to.
func (s *Server) GetMatch(w http.ResponseWriter, r *http.Request) {
	state, vals, err := s.match(r.URL.Query().Get("path"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"state": state.Name, "params": vals})
}

func (s *Server) match(raw string) (*domain.StateNode, waypoint.Values, error) {
	if raw == "" {
		return nil, nil, fmt.Errorf("missing path")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid path: %w", err)
	}
	state, vals := s.Router.Registry().Match(u.Path, u.Query())
	if state == nil {
		return nil, nil, fmt.Errorf("%w: no state matches %q", domain.ErrStateNotFound, raw)
	}
	return state, vals, nil
}

// PostGo handles the POST /go request.
func (s *Server) PostGo(w http.ResponseWriter, r *http.Request) {
	var body GoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Go: Invalid request body", "err", err)
		return
	}

	var target any = body.To
	vals := body.Params
	if body.URL != "" {
		state, matched, err := s.match(body.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		target = state
		for k, v := range body.Params {
			matched[k] = v
		}
		vals = matched
	} else if body.To == "" {
		http.Error(w, "Either 'to' or 'url' is required", http.StatusBadRequest)
		return
	}

	var opts []domain.TransitionOption
	if body.Reload {
		opts = append(opts, waypoint.Reload())
	}
	source := domain.SourceAPI
	if body.URL != "" {
		source = domain.SourceURL
	}
	opts = append(opts, waypoint.Source(source))

	var (
		t   *waypoint.Transition
		err error
	)
	if body.Relative {
		t, err = s.Router.Go(r.Context(), target, vals, opts...)
	} else {
		t, err = s.Router.TransitionTo(r.Context(), target, vals, opts...)
	}
	outcome := waypoint.Summarize(t, err)
	if err != nil {
		s.logger.Info("Go: transition failed", "to", target, "err", err)
	}
	s.writeJSON(w, statusOf(err), outcome)
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, domain.ErrRouterDisposed) {
		return http.StatusServiceUnavailable
	}
	rej, ok := rejection.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch rej.Type {
	case rejection.Ignored:
		return http.StatusOK
	case rejection.Invalid:
		return http.StatusUnprocessableEntity
	case rejection.Superseded, rejection.Aborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SubscribeEvents handles the GET /events request (SSE). The optional
// "state" query parameter keeps only events whose state matches the glob.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var filter func(Event) bool
	if pattern := r.URL.Query().Get("state"); pattern != "" {
		filter = func(ev Event) bool { return glob.Match(ev.State, pattern) }
	}
	ch, cancel := s.Streams.Subscribe(filter)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: transition\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
