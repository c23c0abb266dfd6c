package op

import (
	"net/http"
	"strings"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleUserinfo implements the Userinfo Endpoint of spec.md §4.6:
// accepts the access token from either a form field or a Bearer header,
// releases sub unconditionally, and gates the remaining OIDC standard
// claims by the scopes recorded on the access token's ticket.
func (h *Handler) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("op").Start(r.Context(), "Handler.handleUserinfo")
	defer span.End()

	token := bearerToken(r)
	if token == "" {
		msg, err := DecodeForm(w, r, oidc.RequestTypeToken)
		if err == nil {
			token = msg.AccessToken()
		}
	}
	if token == "" {
		WriteJSONError(w, oidc.ErrInvalidRequest().WithDescription("an access token is required, as a Bearer header or access_token form field"))
		return
	}

	ticket, err := h.DeserializeToken(ctx, h.Options.AccessTokenFormat, UsageAccessToken, token)
	if err != nil || ticket.Expired(h.Options.Clock.UtcNow()) {
		WriteJSONError(w, oidc.ErrInvalidClient().WithDescription("the access token is invalid or expired"))
		return
	}

	sub := ticket.Principal.ClaimValue(ClaimSubject)
	if sub == "" {
		sub = ticket.Principal.ClaimValue(ClaimNameIdentifier)
	}
	resp := map[string]interface{}{
		"sub": sub,
	}
	scopeClaims := map[string][]string{
		oidc.ScopeProfile: {ClaimGivenName, ClaimFamilyName, ClaimBirthdate},
		oidc.ScopeEmail:   {ClaimEmail},
		oidc.ScopePhone:   {ClaimPhoneNumber},
	}
	for _, scope := range ticket.Properties.Scopes() {
		for _, claimType := range scopeClaims[scope] {
			if v := ticket.Principal.ClaimValue(claimType); v != "" {
				resp[claimType] = v
			}
		}
	}

	profileCtx := &ProfileDataContext{Ticket: ticket, RequestedScope: ticket.Properties.Scopes(), Claims: resp}
	h.Provider.ProfileDataRequest(ctx, profileCtx)
	if profileCtx.Error != nil {
		WriteJSONError(w, profileCtx.Error)
		return
	}

	finalCtx := &UserinfoEndpointContext{Ticket: ticket, Response: profileCtx.Claims}
	h.Provider.UserinfoEndpoint(ctx, finalCtx)
	if finalCtx.Error != nil {
		WriteJSONError(w, finalCtx.Error)
		return
	}

	_ = WriteJSON(w, http.StatusOK, finalCtx.Response)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
