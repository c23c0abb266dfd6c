package op

import "strings"

// Endpoint is a configurable path for one of the seven endpoints
// (spec.md §6). An empty Endpoint means the endpoint is disabled.
type Endpoint struct {
	path string
}

// NewEndpoint returns an enabled Endpoint serving at path (relative,
// leading slash optional).
func NewEndpoint(path string) Endpoint {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Endpoint{path: path}
}

// Relative returns the endpoint's path as mounted under the host's
// router, or "" when disabled.
func (e Endpoint) Relative() string { return e.path }

// Enabled reports whether the endpoint accepts requests at all (spec.md
// §3 Client Options: "...enabling each endpoint").
func (e Endpoint) Enabled() bool { return e.path != "" }

// Absolute joins issuer with the endpoint's relative path.
func (e Endpoint) Absolute(issuer string) string {
	if !e.Enabled() {
		return ""
	}
	return strings.TrimSuffix(issuer, "/") + e.path
}

// Matches reports whether the request path equals this endpoint's path
// (spec.md §4.1: "Match is path-equality").
func (e Endpoint) Matches(requestPath string) bool {
	return e.Enabled() && requestPath == e.path
}

// Endpoints bundles the five protocol endpoint paths plus discovery/JWKS.
type Endpoints struct {
	Authorization Endpoint
	Token         Endpoint
	Introspection Endpoint
	Userinfo      Endpoint
	Logout        Endpoint
	Configuration Endpoint
	Cryptography  Endpoint
}

// DefaultEndpoints matches the recommended defaults of spec.md §6.
var DefaultEndpoints = Endpoints{
	Authorization: NewEndpoint("/connect/authorize"),
	Token:         NewEndpoint("/connect/token"),
	Introspection: NewEndpoint("/connect/introspect"),
	Userinfo:      NewEndpoint("/connect/userinfo"),
	Logout:        NewEndpoint("/connect/logout"),
	Configuration: NewEndpoint("/.well-known/openid-configuration"),
	Cryptography:  NewEndpoint("/.well-known/jwks"),
}
