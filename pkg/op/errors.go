package op

import (
	"context"
	"fmt"
	"net/http"

	"github.com/connectid/oidcop/pkg/oidc"
)

type authErrorKey struct{}

// ErrorFromContext returns the authorization error stashed by
// dispatchAuthorizationError when ApplicationCanDisplayErrors let the
// request fall through to the host instead of rendering the native page
// (spec.md §7).
func ErrorFromContext(ctx context.Context) (*oidc.Error, bool) {
	err, ok := ctx.Value(authErrorKey{}).(*oidc.Error)
	return err, ok
}

// errorPageTemplate is the shared plain-text error page rendered when an
// authorization error cannot be delivered to the client's own redirect_uri
// (spec.md §7, §9 Open Question: "preserve the shared error page text").
const errorPageTemplate = "Error: %s\n\n%s"

// WriteNativeError renders the shared plain-text error page with a 400
// status, used when redirectDisabled or no redirect_uri could be trusted
// (spec.md §7).
func WriteNativeError(w http.ResponseWriter, err *oidc.Error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "-1")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, errorPageTemplate, err.ErrorType, err.Description)
}

// WriteRedirectError renders err as a redirect back to redirectURI in the
// given response_mode, preserving state, per spec.md §7: "a recoverable
// authorization error is rendered as a redirect carrying error,
// error_description, error_uri, and state".
func WriteRedirectError(w http.ResponseWriter, r *http.Request, redirectURI, mode string, err *oidc.Error) error {
	resp := oidc.NewProtocolMessage(oidc.RequestTypeAuthentication)
	resp.Set(oidc.ParameterState, err.State)
	resp.Set("error", string(err.ErrorType))
	if err.Description != "" {
		resp.Set("error_description", err.Description)
	}
	if err.URI != "" {
		resp.Set("error_uri", err.URI)
	}
	return RenderAuthorizationResponse(w, r, redirectURI, mode, resp)
}

// WriteJSONError renders err as the RFC 6749 §5.2 JSON error body with a
// 400 status (401 for invalid_client) and no-cache headers (spec.md §4.3, §4.5, §7). Introspection
// is special-cased by the caller: a validation failure there always
// yields {"active": false}, never this shape.
func WriteJSONError(w http.ResponseWriter, err *oidc.Error) {
	status := http.StatusBadRequest
	if err.ErrorType == oidc.InvalidClient {
		status = http.StatusUnauthorized
	}
	_ = WriteJSON(w, status, err)
}

// WriteInactiveIntrospection writes the RFC 7662 §2.2 degenerate
// response: any failure to resolve or validate the token is reported as
// simply inactive, never as an error (spec.md §4.5).
func WriteInactiveIntrospection(w http.ResponseWriter) {
	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{"active": false})
}

// dispatchAuthorizationError routes err to a redirect (when redirects
// aren't disabled for err and a redirect_uri is known), or otherwise to
// either the shared native error page or the host's own error UI,
// exactly per spec.md §7: "when application_can_display_errors is true
// for authorization errors with no valid redirect_uri, the middleware
// stashes the error on the context and falls through to the host;
// otherwise the native plain-text page is produced." The flag only
// changes behavior in the no-redirect_uri branch; a validated
// redirect_uri always wins when err permits a redirect.
func (h *Handler) dispatchAuthorizationError(w http.ResponseWriter, r *http.Request, next http.Handler, redirectURI, mode string, err *oidc.Error) {
	if !err.RedirectDisabled() && redirectURI != "" {
		if writeErr := WriteRedirectError(w, r, redirectURI, mode, err); writeErr != nil {
			WriteNativeError(w, err)
		}
		return
	}
	if h.Options.ApplicationCanDisplayErrors && next != nil {
		ctx := context.WithValue(r.Context(), authErrorKey{}, err)
		next.ServeHTTP(w, r.WithContext(ctx))
		return
	}
	WriteNativeError(w, err)
}
