package op

import "net/http"

// routeFor resolves which of the five protocol endpoints (plus
// discovery/JWKS) a request path matches, giving the Provider's
// MatchEndpoint hook first refusal (spec.md §4.1: "Match is
// path-equality; a provider may override which endpoint a path routes
// to").
func (h *Handler) routeFor(r *http.Request) EndpointTag {
	matchCtx := &MatchEndpointContext{Path: r.URL.Path}
	h.Provider.MatchEndpoint(r.Context(), matchCtx)
	if matchCtx.Tag != EndpointNone {
		return matchCtx.Tag
	}
	switch {
	case h.Options.Endpoints.Authorization.Matches(r.URL.Path):
		return EndpointAuthorization
	case h.Options.Endpoints.Token.Matches(r.URL.Path):
		return EndpointToken
	case h.Options.Endpoints.Introspection.Matches(r.URL.Path):
		return EndpointIntrospection
	case h.Options.Endpoints.Userinfo.Matches(r.URL.Path):
		return EndpointUserinfo
	case h.Options.Endpoints.Logout.Matches(r.URL.Path):
		return EndpointLogout
	case h.Options.Endpoints.Configuration.Matches(r.URL.Path):
		return EndpointConfiguration
	case h.Options.Endpoints.Cryptography.Matches(r.URL.Path):
		return EndpointCryptography
	default:
		return EndpointNone
	}
}

// ServeHTTP dispatches a request to the matched endpoint, passing
// anything unmatched through to next (spec.md §4.1: "unmatched paths
// fall through to the next handler in the host's middleware chain").
func (h *Handler) ServeHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch h.routeFor(r) {
		case EndpointAuthorization:
			h.handleAuthorization(w, r, next)
		case EndpointToken:
			h.handleToken(w, r)
		case EndpointIntrospection:
			h.handleIntrospection(w, r)
		case EndpointUserinfo:
			h.handleUserinfo(w, r)
		case EndpointLogout:
			h.handleLogout(w, r)
		case EndpointConfiguration:
			h.handleDiscovery(w, r)
		case EndpointCryptography:
			h.handleJWKS(w, r)
		default:
			if next != nil {
				next.ServeHTTP(w, r)
				return
			}
			http.NotFound(w, r)
		}
	})
}
