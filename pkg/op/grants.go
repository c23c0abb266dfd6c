package op

import (
	"context"
	"time"

	"github.com/connectid/oidcop/pkg/oidc"
)

// grantAuthorizationCode implements the authorization_code grant of
// spec.md §4.4: redeem the one-shot code, then require that the
// redeeming client matches the one the code was issued to, and that a
// redirect_uri presented now (if any) equals the one presented at
// authorization time.
func (h *Handler) grantAuthorizationCode(ctx context.Context, msg *oidc.ProtocolMessage, clientID string, confidential bool) (*Ticket, error) {
	code := msg.Code()
	if code == "" {
		return nil, oidc.ErrInvalidRequest().WithDescription("code is required")
	}
	ticket, err := h.RedeemAuthorizationCode(ctx, code)
	if err != nil {
		return nil, oidc.ErrInvalidGrant().WithDescription("the authorization code is invalid or expired").WithParent(err)
	}
	if ticket.Expired(h.Options.Clock.UtcNow()) {
		return nil, oidc.ErrInvalidGrant().WithDescription("the authorization code has expired")
	}
	if ticket.Properties.Items[ItemClientID] != clientID {
		return nil, oidc.ErrInvalidGrant().WithDescription("the authorization code was not issued to this client")
	}
	if redirectURI := msg.RedirectURI(); redirectURI != "" && redirectURI != ticket.Properties.Items[ItemRedirectURI] {
		return nil, oidc.ErrInvalidGrant().WithDescription("redirect_uri does not match the value used at authorization time")
	}
	ticket.Properties.SetConfidential(confidential)

	grantCtx := &GrantContext{Message: msg, Ticket: ticket, Granted: ticket}
	h.Provider.GrantAuthorizationCode(ctx, grantCtx)
	if grantCtx.Error != nil {
		return nil, grantCtx.Error
	}
	granted := ticket
	if grantCtx.Granted != nil {
		granted = grantCtx.Granted
	}
	clearLifetimeIfUnchanged(ticket, granted)
	return granted, nil
}

// grantRefreshToken implements the refresh_token grant of spec.md §4.4:
// deserialize the presented refresh token, require client ownership, and
// narrow scope/resource to a subset of what was originally granted. The
// returned time.Time is the presented refresh token's own expires_utc,
// captured before clearLifetimeIfUnchanged can zero it, so callers can
// enforce the use_sliding_expiration=false cap of spec.md §3/§4.4; it is
// the zero Time on any error return.
func (h *Handler) grantRefreshToken(ctx context.Context, msg *oidc.ProtocolMessage, clientID string, confidential bool) (*Ticket, time.Time, error) {
	raw := msg.RefreshToken()
	if raw == "" {
		return nil, time.Time{}, oidc.ErrInvalidRequest().WithDescription("refresh_token is required")
	}
	ticket, err := h.DeserializeToken(ctx, h.Options.RefreshTokenFormat, UsageRefreshToken, raw)
	if err != nil {
		return nil, time.Time{}, oidc.ErrInvalidGrant().WithDescription("the refresh token is invalid").WithParent(err)
	}
	sourceExpiresUTC := ticket.Properties.ExpiresUTC
	if ticket.Expired(h.Options.Clock.UtcNow()) {
		return nil, time.Time{}, oidc.ErrInvalidGrant().WithDescription("the refresh token has expired")
	}
	if ticket.Properties.Items[ItemClientID] != clientID {
		return nil, time.Time{}, oidc.ErrInvalidGrant().WithDescription("the refresh token was not issued to this client")
	}
	ticket.Properties.SetConfidential(confidential)

	if requested := msg.Scopes(); len(requested) > 0 {
		narrowed, err := narrowScope(ticket.Properties.Scopes(), requested)
		if err != nil {
			return nil, time.Time{}, err
		}
		ticket.Properties.SetScopes(narrowed)
	}
	if resource := msg.Resource(); resource != "" {
		allowed := oidc.SplitSpace(ticket.Properties.Items[ItemResource])
		for _, res := range oidc.SplitSpace(resource) {
			if !contains(allowed, res) {
				return nil, time.Time{}, oidc.ErrInvalidGrant().WithDescription("resource %q exceeds the resource originally granted", res)
			}
		}
		ticket.Properties.Items[ItemResource] = resource
	}

	grantCtx := &GrantContext{Message: msg, Ticket: ticket, Granted: ticket}
	h.Provider.GrantRefreshToken(ctx, grantCtx)
	if grantCtx.Error != nil {
		return nil, time.Time{}, grantCtx.Error
	}
	granted := ticket
	if grantCtx.Granted != nil {
		granted = grantCtx.Granted
	}
	clearLifetimeIfUnchanged(ticket, granted)
	return granted, sourceExpiresUTC, nil
}

// grantResourceOwnerCredentials implements the (legacy) password grant;
// spec.md §4.4 leaves authenticating username/password entirely to the
// Provider.
func (h *Handler) grantResourceOwnerCredentials(ctx context.Context, msg *oidc.ProtocolMessage, confidential bool) (*Ticket, error) {
	if msg.Username() == "" {
		return nil, oidc.ErrInvalidRequest().WithDescription("username is required")
	}
	grantCtx := &GrantContext{Message: msg}
	h.Provider.GrantResourceOwnerCredentials(ctx, grantCtx)
	if grantCtx.Error != nil {
		return nil, grantCtx.Error
	}
	if grantCtx.Granted == nil {
		return nil, oidc.ErrInvalidGrant().WithDescription("invalid username or password")
	}
	grantCtx.Granted.Properties.SetConfidential(confidential)
	return grantCtx.Granted, nil
}

// grantClientCredentials implements the client_credentials grant, issued
// only to a confidential client (spec.md §4.4).
func (h *Handler) grantClientCredentials(ctx context.Context, msg *oidc.ProtocolMessage, confidential bool) (*Ticket, error) {
	if !confidential {
		return nil, oidc.ErrUnauthorizedClient().WithDescription("client_credentials requires a confidential, authenticated client")
	}
	grantCtx := &GrantContext{Message: msg}
	h.Provider.GrantClientCredentials(ctx, grantCtx)
	if grantCtx.Error != nil {
		return nil, grantCtx.Error
	}
	if grantCtx.Granted == nil {
		return nil, oidc.ErrInvalidGrant().WithDescription("client_credentials grant was not fulfilled")
	}
	grantCtx.Granted.Properties.SetConfidential(true)
	return grantCtx.Granted, nil
}

// grantCustomExtension dispatches an unrecognized grant_type (a URI per
// RFC 6749 §4.5) to the Provider, which defaults to rejecting it as
// unsupported_grant_type (spec.md §4.4, DefaultProvider.GrantCustomExtension).
func (h *Handler) grantCustomExtension(ctx context.Context, msg *oidc.ProtocolMessage) (*Ticket, error) {
	grantCtx := &GrantContext{Message: msg}
	h.Provider.GrantCustomExtension(ctx, grantCtx)
	if grantCtx.Error != nil {
		return nil, grantCtx.Error
	}
	if grantCtx.Granted == nil {
		return nil, oidc.ErrUnsupportedGrantType().WithDescription("unsupported grant_type %q", msg.GrantType())
	}
	return grantCtx.Granted, nil
}

// clearLifetimeIfUnchanged zeroes granted's issued_utc/expires_utc when
// they still equal input's, so writeTokenResponse computes fresh
// lifetimes for the access/identity/refresh tokens it derives from the
// granted ticket instead of inheriting the presented token's own window
// (spec.md §4.4).
func clearLifetimeIfUnchanged(input, granted *Ticket) {
	if granted.Properties.IssuedUTC.Equal(input.Properties.IssuedUTC) &&
		granted.Properties.ExpiresUTC.Equal(input.Properties.ExpiresUTC) {
		var zero time.Time
		granted.Properties.IssuedUTC = zero
		granted.Properties.ExpiresUTC = zero
	}
}

// narrowScope requires that every requested scope was present in
// original, per spec.md §4.4: "the refresh grant may narrow but never
// widen scope".
func narrowScope(original, requested []string) ([]string, error) {
	allowed := make(map[string]bool, len(original))
	for _, s := range original {
		allowed[s] = true
	}
	for _, s := range requested {
		if !allowed[s] {
			return nil, oidc.ErrInvalidGrant().WithDescription("scope %q exceeds the scope originally granted", s)
		}
	}
	return requested, nil
}

