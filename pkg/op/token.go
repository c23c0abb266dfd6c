package op

import (
	"net/http"
	"time"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleToken implements the Token Endpoint of spec.md §4.4: decodes the
// POST body, authenticates the client, dispatches on grant_type, and
// composes the response.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("op").Start(r.Context(), "Handler.handleToken")
	defer span.End()
	r = r.WithContext(ctx)

	msg, err := DecodeForm(w, r, oidc.RequestTypeToken)
	if err != nil {
		WriteJSONError(w, oidc.AsError(err))
		return
	}

	clientID, clientSecret, err := RequireBasicOrFormClientAuth(r, msg)
	if err != nil {
		WriteJSONError(w, oidc.AsError(err))
		return
	}

	authCtx := &ValidateClientAuthenticationContext{ClientID: clientID, ClientSecret: clientSecret, Message: msg}
	h.Provider.ValidateClientAuthentication(ctx, authCtx)
	if authCtx.Error != nil {
		WriteJSONError(w, authCtx.Error)
		return
	}
	if authCtx.Result == ClientAuthRejected {
		WriteJSONError(w, oidc.ErrInvalidClient().WithDescription("client authentication failed"))
		return
	}
	confidential := authCtx.Result == ClientAuthValidated && authCtx.Confidential

	grantType := msg.GrantType()
	if grantType == "" {
		WriteJSONError(w, oidc.ErrInvalidRequest().WithDescription("grant_type is required"))
		return
	}

	var ticket *Ticket
	var sourceRefreshExpiresUTC time.Time
	switch grantType {
	case oidc.GrantTypeAuthorizationCode:
		ticket, err = h.grantAuthorizationCode(ctx, msg, clientID, confidential)
	case oidc.GrantTypeRefreshToken:
		ticket, sourceRefreshExpiresUTC, err = h.grantRefreshToken(ctx, msg, clientID, confidential)
	case oidc.GrantTypePassword:
		ticket, err = h.grantResourceOwnerCredentials(ctx, msg, confidential)
	case oidc.GrantTypeClientCredentials:
		ticket, err = h.grantClientCredentials(ctx, msg, confidential)
	default:
		ticket, err = h.grantCustomExtension(ctx, msg)
	}
	if err != nil {
		WriteJSONError(w, oidc.AsError(err))
		return
	}

	validateCtx := &ValidateTokenRequestContext{Message: msg, Ticket: ticket}
	h.Provider.ValidateTokenRequest(ctx, validateCtx)
	if validateCtx.Error != nil {
		WriteJSONError(w, validateCtx.Error)
		return
	}

	h.writeTokenResponse(w, r, msg, ticket, grantType, sourceRefreshExpiresUTC)
}

// writeTokenResponse composes and serializes the access_token (always),
// id_token (when the granted ticket's scope contains openid and the
// request's response_type is omitted or contains id_token, regardless of
// grant_type), and refresh_token (only when offline_access was granted)
// per spec.md §4.4/§4.11. When grantType is refresh_token and
// use_sliding_expiration is false, sourceRefreshExpiresUTC caps every
// issued token's expiry at the refresh token that minted them (spec.md
// §3, §4.4); it is the zero Time for every other grant.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, r *http.Request, msg *oidc.ProtocolMessage, ticket *Ticket, grantType string, sourceRefreshExpiresUTC time.Time) {
	ctx := r.Context()
	now := h.Options.Clock.UtcNow()

	capExpiry := func(expires time.Time) time.Time {
		if grantType == oidc.GrantTypeRefreshToken && !h.Options.UseSlidingExpiration &&
			!sourceRefreshExpiresUTC.IsZero() && expires.After(sourceRefreshExpiresUTC) {
			return sourceRefreshExpiresUTC
		}
		return expires
	}

	accessTicket := *ticket
	accessTicket.Properties = &Properties{
		Items:      cloneItems(ticket.Properties.Items),
		IssuedUTC:  now,
		ExpiresUTC: capExpiry(now.Add(h.Options.AccessTokenLifetime)),
	}
	accessTicket.Properties.SetUsage(UsageAccessToken)
	accessTicket.Properties.SetConfidential(ticket.Properties.Confidential())

	createCtx := &CreateAccessTokenContext{Ticket: &accessTicket}
	h.Provider.CreateAccessToken(ctx, createCtx)
	if createCtx.Error != nil {
		WriteJSONError(w, createCtx.Error)
		return
	}

	accessToken, err := h.SerializeToken(ctx, h.Options.AccessTokenFormat, &accessTicket)
	if err != nil {
		WriteJSONError(w, oidc.ErrServerError().WithParent(err))
		return
	}

	resp := map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "Bearer",
	}
	if expiresIn, ok := expiresInSeconds(now, accessTicket.Properties.ExpiresUTC); ok {
		resp["expires_in"] = expiresIn
	}
	if scopes := ticket.Properties.Scopes(); len(scopes) > 0 {
		resp["scope"] = joinSpace(scopes)
	}

	wantsIDToken := len(msg.ResponseTypes()) == 0 || msg.HasResponseType("id_token")
	if hasScope(ticket, oidc.ScopeOpenID) && wantsIDToken && ticket.Principal.ClaimValue(ClaimSubject) != "" {
		idTicket := *ticket
		idTicket.Properties = &Properties{
			Items:      cloneItems(ticket.Properties.Items),
			IssuedUTC:  now,
			ExpiresUTC: capExpiry(now.Add(h.Options.IdentityTokenLifetime)),
		}
		idTicket.Properties.SetUsage(UsageIDToken)

		idCreateCtx := &CreateIdentityTokenContext{Ticket: &idTicket}
		h.Provider.CreateIdentityToken(ctx, idCreateCtx)
		if idCreateCtx.Error != nil {
			WriteJSONError(w, idCreateCtx.Error)
			return
		}

		atHash := leftHalfSHA256(accessToken)
		idToken, err := h.signJWT(&idTicket, &atHash, nil)
		if err != nil {
			WriteJSONError(w, oidc.ErrServerError().WithParent(err))
			return
		}
		resp["id_token"] = idToken
	}

	if hasScope(ticket, oidc.ScopeOfflineAccess) {
		refreshTicket := *ticket
		refreshTicket.Properties = &Properties{
			Items:      cloneItems(ticket.Properties.Items),
			IssuedUTC:  now,
			ExpiresUTC: capExpiry(now.Add(h.Options.RefreshTokenLifetime)),
		}
		refreshTicket.Properties.SetUsage(UsageRefreshToken)
		refreshToken, err := h.SerializeToken(ctx, h.Options.RefreshTokenFormat, &refreshTicket)
		if err != nil {
			WriteJSONError(w, oidc.ErrServerError().WithParent(err))
			return
		}
		resp["refresh_token"] = refreshToken
	}

	tokenCtx := &TokenEndpointContext{Message: msg, Response: resp}
	h.Provider.TokenEndpoint(ctx, tokenCtx)
	if tokenCtx.Error != nil {
		WriteJSONError(w, tokenCtx.Error)
		return
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}

// expiresInSeconds reports the rounded number of seconds until expires,
// omitted entirely when expires does not lie strictly in the future
// (spec.md §4.4: "include expires_in when expires_utc lies in the
// future").
func expiresInSeconds(now, expires time.Time) (int64, bool) {
	if !expires.After(now) {
		return 0, false
	}
	return int64(expires.Sub(now).Round(time.Second).Seconds()), true
}

func cloneItems(items map[string]string) map[string]string {
	out := make(map[string]string, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}

func hasScope(t *Ticket, scope string) bool {
	for _, s := range t.Properties.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

