package apiflow

import (
	"strings"
	"sync"
)

// Navigator performs a full client navigation.
type Navigator interface {
	RedirectTo(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// RedirectTo implements Navigator.
func (f NavigatorFunc) RedirectTo(path string) {
	f(path)
}

// RouteFunc reports the route the user is currently on.
type RouteFunc func() string

// RecordingNavigator remembers redirects instead of performing them. It is
// useful for headless callers that surface the login route themselves.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

// RedirectTo implements Navigator.
func (n *RecordingNavigator) RedirectTo(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

// Redirects returns every recorded path in order.
func (n *RecordingNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// LoginRoute maps a section of the dashboard to its sign-in page.
type LoginRoute struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	Path   string `yaml:"path" toml:"path"`
}

// SessionPolicy decides how a 401 response is handled.
type SessionPolicy struct {
	// LoginRoutes are checked in order; the first whose Prefix starts the
	// current route picks the login page.
	LoginRoutes []LoginRoute
	// DefaultLoginPath is used when no LoginRoutes prefix matches.
	DefaultLoginPath string
	// AuthEndpoints are API targets whose 401s are the caller's to show
	// inline: sign-in, registration and identity checks.
	AuthEndpoints []string
}

// DefaultSessionPolicy returns the dashboard's routing: the HR and pharmacy
// sections have their own sign-in pages, everything else uses /login.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		LoginRoutes: []LoginRoute{
			{Prefix: "/hr", Path: "/hr/login"},
			{Prefix: "/pharmacy", Path: "/pharmacy/login"},
		},
		DefaultLoginPath: "/login",
		AuthEndpoints:    []string{"/auth/login", "/auth/register", "/auth/check"},
	}
}

// IsLoginRoute reports whether route is one of the sign-in pages.
func (p SessionPolicy) IsLoginRoute(route string) bool {
	route = trimRoute(route)
	if route == "" {
		return false
	}
	if pathMatches(route, p.DefaultLoginPath) {
		return true
	}
	for _, lr := range p.LoginRoutes {
		if pathMatches(route, lr.Path) {
			return true
		}
	}
	return false
}

// IsAuthEndpoint reports whether target is a sign-in, registration or
// identity-check call. Targets may carry a base path before the endpoint.
func (p SessionPolicy) IsAuthEndpoint(target string) bool {
	target = trimRoute(target)
	for _, ep := range p.AuthEndpoints {
		ep = trimRoute(ep)
		if ep != "" && (target == ep || strings.HasSuffix(target, ep)) {
			return true
		}
	}
	return false
}

// LoginPathFor returns the sign-in page for the section containing route.
func (p SessionPolicy) LoginPathFor(route string) string {
	route = trimRoute(route)
	for _, lr := range p.LoginRoutes {
		if pathMatches(route, lr.Prefix) {
			return lr.Path
		}
	}
	return p.DefaultLoginPath
}

// pathMatches reports whether route equals prefix or lies beneath it.
func pathMatches(route, prefix string) bool {
	prefix = trimRoute(prefix)
	if prefix == "" {
		return false
	}
	return route == prefix || strings.HasPrefix(route, prefix+"/")
}

// trimRoute drops any query, fragment and trailing slash.
func trimRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}
