package op

import (
	"net/http"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleDiscovery implements the Discovery Endpoint (OpenID Connect
// Discovery 1.0) of spec.md §4.8: the document is derived entirely from
// live Options, never hand-maintained separately from the endpoints that
// actually exist.
func (h *Handler) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("op").Start(r.Context(), "Handler.handleDiscovery")
	defer span.End()

	doc := h.discoveryConfiguration()
	w.Header().Set("Content-Type", "application/json")
	_ = WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) discoveryConfiguration() *oidc.DiscoveryConfiguration {
	o := h.Options
	doc := &oidc.DiscoveryConfiguration{
		Issuer: o.Issuer,
		ScopesSupported: []string{
			oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail,
			oidc.ScopePhone, oidc.ScopeAddress, oidc.ScopeOfflineAccess,
		},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: supportedAlgorithms(o.SigningCredentials),
	}
	if o.Endpoints.Authorization.Enabled() {
		doc.AuthorizationEndpoint = o.Endpoints.Authorization.Absolute(o.Issuer)
	}
	if o.Endpoints.Token.Enabled() {
		doc.TokenEndpoint = o.Endpoints.Token.Absolute(o.Issuer)
	}
	if o.Endpoints.Introspection.Enabled() {
		doc.IntrospectionEndpoint = o.Endpoints.Introspection.Absolute(o.Issuer)
	}
	if o.Endpoints.Userinfo.Enabled() {
		doc.UserinfoEndpoint = o.Endpoints.Userinfo.Absolute(o.Issuer)
	}
	if o.Endpoints.Logout.Enabled() {
		doc.EndSessionEndpoint = o.Endpoints.Logout.Absolute(o.Issuer)
	}
	if o.Endpoints.Cryptography.Enabled() {
		doc.JwksURI = o.Endpoints.Cryptography.Absolute(o.Issuer)
	}

	doc.ResponseTypesSupported = responseTypesSupported(o)
	doc.ResponseModesSupported = []string{oidc.ResponseModeQuery, oidc.ResponseModeFragment, oidc.ResponseModeFormPost}
	doc.GrantTypesSupported = grantTypesSupported(o)
	return doc
}

// responseTypesSupported enumerates the cross product of code/token/
// id_token this instance can service, gated by whether the token
// endpoint is enabled (code requires it).
func responseTypesSupported(o *Options) []string {
	types := []string{"id_token", "token", "token id_token"}
	if o.Endpoints.Token.Enabled() {
		types = append(types, "code", "code id_token", "code token", "code token id_token")
	}
	return types
}

func grantTypesSupported(o *Options) []string {
	if !o.Endpoints.Token.Enabled() {
		return nil
	}
	return []string{
		oidc.GrantTypeAuthorizationCode,
		oidc.GrantTypeRefreshToken,
		oidc.GrantTypeClientCredentials,
	}
}

func supportedAlgorithms(creds []SigningCredentials) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range creds {
		alg := string(c.Algorithm())
		if seen[alg] || !supportedJWKAlgorithms[c.Algorithm()] {
			continue
		}
		seen[alg] = true
		out = append(out, alg)
	}
	return out
}
