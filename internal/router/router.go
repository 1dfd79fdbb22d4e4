package router

import (
	"context"
	"github.com/rs/zerolog/log"
	"strings"
	"time"
)

// Handler produces the reply for a routed message, text keeps its original case.
type Handler func(ctx context.Context, text string) (string, error)

type Route struct {
	Name     string
	Keywords []string
	Handler  Handler
}

// Matches is a case-insensitive substring check against any keyword.
func (r Route) Matches(lowerText string) bool {
	_, ok := r.matchedKeyword(lowerText)
	return ok
}

func (r Route) matchedKeyword(lowerText string) (string, bool) {
	for _, keyword := range r.Keywords {
		if strings.Contains(lowerText, keyword) {
			return keyword, true
		}
	}
	return "", false
}

const FallbackRoute = "completion"

// Router evaluates its routes strictly in order, the first match wins even when
// later groups also match. Without a match the fallback handles the text.
type Router struct {
	routes   []Route
	fallback Handler
}

func New(routes []Route, fallback Handler) *Router {
	return &Router{routes: routes, fallback: fallback}
}

// Routes returns the routes in priority order.
func (r *Router) Routes() []Route {
	result := make([]Route, len(r.routes))
	copy(result, r.routes)
	return result
}

// Match returns the name of the route that would handle text.
func (r *Router) Match(text string) string {
	lower := strings.ToLower(text)
	for _, route := range r.routes {
		if route.Matches(lower) {
			return route.Name
		}
	}
	return FallbackRoute
}

func (r *Router) Dispatch(ctx context.Context, text string) (reply string, routeName string, err error) {
	startTime := time.Now()
	lower := strings.ToLower(text)

	handler := r.fallback
	routeName = FallbackRoute
	for _, route := range r.routes {
		if route.Matches(lower) {
			handler = route.Handler
			routeName = route.Name
			break
		}
	}

	reply, err = handler(ctx, text)
	log.Info().Str("route", routeName).Dur("duration", time.Since(startTime)).Bool("ok", err == nil).Msg("message routed")
	return
}
