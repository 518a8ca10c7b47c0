package workflow

import (
	"fmt"
	"strings"
)

const DefaultRoutePrefix = "/onboarding/"

// DefaultRoutes maps every step, including route-only ones, to its path.
func DefaultRoutes() map[Step]string {
	routes := make(map[Step]string, len(order)+1)
	for _, step := range order {
		routes[step] = DefaultRoutePrefix + string(step)
	}
	routes[StepGlobalScreening] = DefaultRoutePrefix + string(StepGlobalScreening)
	return routes
}

// StateSource supplies the state a guard decision is made against.
type StateSource interface {
	State() State
}

type StateSourceFunc func() State

func (fn StateSourceFunc) State() State { return fn() }

type Decision struct {
	Allowed      bool
	Requested    Step
	Redirect     Step
	RedirectPath string
}

// RouteGuard admits a step only when its guard passes and otherwise sends
// the user to the furthest accessible step.
type RouteGuard struct {
	source StateSource
	routes map[Step]string
	steps  map[string]Step
}

// NewRouteGuard validates that routes is a one to one mapping. A nil map
// uses DefaultRoutes.
func NewRouteGuard(source StateSource, routes map[Step]string) (*RouteGuard, error) {
	if source == nil {
		return nil, fmt.Errorf("workflow: route guard state source is required")
	}
	if routes == nil {
		routes = DefaultRoutes()
	}
	g := &RouteGuard{
		source: source,
		routes: make(map[Step]string, len(routes)),
		steps:  make(map[string]Step, len(routes)),
	}
	for step, path := range routes {
		path = normalizePath(path)
		if path == "" {
			return nil, fmt.Errorf("workflow: route for step %q is empty", step)
		}
		if other, ok := g.steps[path]; ok {
			return nil, fmt.Errorf("workflow: path %q mapped to both %q and %q", path, other, step)
		}
		g.routes[step] = path
		g.steps[path] = step
	}
	for _, step := range order {
		if _, ok := g.routes[step]; !ok {
			return nil, fmt.Errorf("workflow: route for step %q is missing", step)
		}
	}
	return g, nil
}

func (g *RouteGuard) Path(step Step) (string, bool) {
	path, ok := g.routes[step]
	return path, ok
}

func (g *RouteGuard) StepForPath(path string) (Step, bool) {
	step, ok := g.steps[normalizePath(path)]
	return step, ok
}

// Check decides whether step may be rendered against the current state.
func (g *RouteGuard) Check(step Step) Decision {
	state := g.source.State()
	decision := Decision{Requested: step}
	if CanAdvanceTo(state, step) {
		decision.Allowed = true
		return decision
	}
	decision.Redirect = FurthestAccessible(state)
	decision.RedirectPath = g.routes[decision.Redirect]
	return decision
}

// CheckPath is Check keyed by path. The boolean is false for paths that are
// not workflow routes.
func (g *RouteGuard) CheckPath(path string) (Decision, bool) {
	step, ok := g.StepForPath(path)
	if !ok {
		return Decision{}, false
	}
	return g.Check(step), true
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if index := strings.IndexAny(path, "?#"); index >= 0 {
		path = path[:index]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
