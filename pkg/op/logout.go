package op

import (
	"net/http"
	"net/url"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleLogout implements the Logout Endpoint (RP-Initiated Logout) of
// spec.md §4.7: validates post_logout_redirect_uri against the Provider,
// invokes the SignOut hook (LogoutEndpoint), and redirects back when one
// was supplied and validated.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("op").Start(r.Context(), "Handler.handleLogout")
	defer span.End()

	msg, err := DecodeQuery(r, oidc.RequestTypeLogout)
	if err != nil {
		WriteNativeError(w, oidc.AsError(err))
		return
	}

	if redirectURI := msg.PostLogoutRedirectURI(); redirectURI != "" {
		validateCtx := &ValidateClientLogoutRedirectURIContext{RedirectURI: redirectURI}
		h.Provider.ValidateClientLogoutRedirectUri(ctx, validateCtx)
		if validateCtx.Error != nil {
			WriteNativeError(w, validateCtx.Error)
			return
		}
	}

	logoutCtx := &LogoutEndpointContext{Message: msg, Writer: w, Request: r}
	h.Provider.LogoutEndpoint(ctx, logoutCtx)
	if logoutCtx.Error != nil {
		WriteNativeError(w, logoutCtx.Error)
		return
	}
	if logoutCtx.Handled {
		return
	}

	redirectURI := msg.PostLogoutRedirectURI()
	if redirectURI == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if state := msg.State(); state != "" {
		if u, err := url.Parse(redirectURI); err == nil {
			q := u.Query()
			q.Set(oidc.ParameterState, state)
			u.RawQuery = q.Encode()
			redirectURI = u.String()
		}
	}
	http.Redirect(w, r, redirectURI, http.StatusFound)
}
