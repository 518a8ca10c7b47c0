package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/workflow"
)

// RouteChecker decides whether a request path may render.
type RouteChecker interface {
	CheckPath(path string) (workflow.Decision, bool)
	Path(step workflow.Step) (string, bool)
}

type Option func(*config)

type config struct {
	status int
	inst   core.Instrumentation
	logger core.Logger
}

// WithRedirectStatus overrides the redirect status, http.StatusFound by
// default. Non 3xx values are ignored.
func WithRedirectStatus(status int) Option {
	return func(cfg *config) {
		if status >= 300 && status < 400 {
			cfg.status = status
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

type decisionKey struct{}

// DecisionFromContext returns the guard decision attached to an allowed
// request.
func DecisionFromContext(ctx context.Context) (workflow.Decision, bool) {
	if ctx == nil {
		return workflow.Decision{}, false
	}
	decision, ok := ctx.Value(decisionKey{}).(workflow.Decision)
	return decision, ok
}

// RouteGuard redirects requests for workflow steps the current state cannot
// reach to the furthest accessible step. Paths that are not workflow routes
// pass through untouched.
func RouteGuard(checker RouteChecker, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{status: http.StatusFound}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.inst = core.NewInstrumentation("onboarding.middleware", cfg.logger, nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				next.ServeHTTP(w, r)
				return
			}
			decision, ok := checker.CheckPath(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if decision.Allowed {
				ctx := context.WithValue(r.Context(), decisionKey{}, decision)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			target := decision.RedirectPath
			if target == "" {
				target, _ = checker.Path(decision.Redirect)
			}
			cfg.inst.LogInfo(r.Context(), "workflow route redirected", map[string]any{
				"requested": string(decision.Requested),
				"redirect":  string(decision.Redirect),
				"path":      r.URL.Path,
			})
			http.Redirect(w, r, target, cfg.status)
		})
	}
}

// StepHandler renders a single workflow step.
type StepHandler func(step workflow.Step) http.Handler

// Mount registers one guarded GET route per step on r, including route only
// steps such as global screening.
func Mount(r chi.Router, guard RouteChecker, steps []workflow.Step, render StepHandler, opts ...Option) {
	if r == nil || guard == nil || render == nil {
		return
	}
	r.Group(func(group chi.Router) {
		group.Use(RouteGuard(guard, opts...))
		for _, step := range steps {
			path, ok := guard.Path(step)
			if !ok {
				continue
			}
			group.Method(http.MethodGet, path, render(step))
		}
	})
}
