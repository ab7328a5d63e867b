package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/telemetry/logging"
)

// Route binds a named backend to the model prefixes it serves.
type Route struct {
	Name     string
	Prefixes []string
	Backend  Backend
}

type prefixRoute struct {
	prefix string
	route  *Route
}

// Router is a Backend that dispatches on the request model. The longest
// matching prefix wins; models matching no prefix go to the default route.
type Router struct {
	routes   []*Route
	byPrefix []prefixRoute
	fallback *Route
}

// NewRouter builds a router over routes. defaultName may be empty, in which
// case unmatched models are rejected with a 404.
func NewRouter(routes []Route, defaultName string) (*Router, error) {
	r := &Router{}
	seen := make(map[string]bool, len(routes))

	for i := range routes {
		route := routes[i]
		if route.Backend == nil {
			return nil, fmt.Errorf("route %q has no backend", route.Name)
		}
		if seen[route.Name] {
			return nil, fmt.Errorf("duplicate route %q", route.Name)
		}
		seen[route.Name] = true

		rp := &route
		r.routes = append(r.routes, rp)
		for _, prefix := range route.Prefixes {
			r.byPrefix = append(r.byPrefix, prefixRoute{prefix: prefix, route: rp})
		}
		if route.Name == defaultName {
			r.fallback = rp
		}
	}

	if defaultName != "" && r.fallback == nil {
		return nil, fmt.Errorf("default route %q is not configured", defaultName)
	}

	sort.SliceStable(r.byPrefix, func(i, j int) bool {
		return len(r.byPrefix[i].prefix) > len(r.byPrefix[j].prefix)
	})

	return r, nil
}

// NewFromConfig creates one HTTPBackend per configured upstream and a router
// over them.
func NewFromConfig(cfg *config.BackendConfig, opts ...Option) (*Router, error) {
	routes := make([]Route, 0, len(cfg.Upstreams))
	for _, up := range cfg.Upstreams {
		routes = append(routes, Route{
			Name:     up.Name,
			Prefixes: up.ModelPrefixes,
			Backend:  NewHTTPBackend(up, opts...),
		})
	}
	return NewRouter(routes, cfg.Default)
}

// Resolve returns the route serving model.
func (r *Router) Resolve(model string) (*Route, error) {
	for _, pr := range r.byPrefix {
		if strings.HasPrefix(model, pr.prefix) {
			return pr.route, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, &Error{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("no backend configured for model %q", model),
	}
}

// Complete routes the call by params["model"].
func (r *Router) Complete(ctx context.Context, credential string, params map[string]any) (*Response, error) {
	model, _ := params["model"].(string)

	route, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}

	resp, err := route.Backend.Complete(logging.WithBackend(ctx, route.Name), credential, params)
	if resp != nil && resp.Backend == "" {
		resp.Backend = route.Name
	}
	return resp, err
}

// Routes returns the configured routes in configuration order.
func (r *Router) Routes() []*Route {
	return append([]*Route(nil), r.routes...)
}

// HealthCheckers returns the routes whose backend can be probed actively,
// keyed by route name. HTTP backends without a health path are left out.
func (r *Router) HealthCheckers() map[string]HealthChecker {
	checkers := make(map[string]HealthChecker)
	for _, route := range r.routes {
		checker, ok := route.Backend.(HealthChecker)
		if !ok {
			continue
		}
		if hb, ok := route.Backend.(*HTTPBackend); ok && hb.HealthPath() == "" {
			continue
		}
		checkers[route.Name] = checker
	}
	return checkers
}

// Close closes every backend that holds resources.
func (r *Router) Close() error {
	var errs []error
	for _, route := range r.routes {
		if closer, ok := route.Backend.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", route.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
