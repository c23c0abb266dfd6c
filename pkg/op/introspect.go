package op

import (
	"context"
	"net/http"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// introspectionUsageOrder is the sequence RFC 7662 §2.1's token_type_hint
// narrows but never strictly limits: try the hinted kind first, then
// fall back through the others (spec.md §4.5).
var introspectionUsageOrder = []Usage{UsageAccessToken, UsageIDToken, UsageRefreshToken}

// handleIntrospection implements the Introspection Endpoint (RFC 7662) of
// spec.md §4.5: any failure mode (expired client auth, malformed token,
// signature failure, usage mismatch) degrades to {"active": false},
// never an error response.
func (h *Handler) handleIntrospection(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("op").Start(r.Context(), "Handler.handleIntrospection")
	defer span.End()
	r = r.WithContext(ctx)

	msg, err := DecodeForm(w, r, oidc.RequestTypeToken)
	if err != nil {
		WriteInactiveIntrospection(w)
		return
	}

	clientID, clientSecret, err := RequireBasicOrFormClientAuth(r, msg)
	if err != nil {
		WriteInactiveIntrospection(w)
		return
	}
	authCtx := &ValidateClientAuthenticationContext{ClientID: clientID, ClientSecret: clientSecret, Message: msg}
	h.Provider.ValidateClientAuthentication(ctx, authCtx)
	if authCtx.Error != nil || authCtx.Result == ClientAuthRejected {
		WriteInactiveIntrospection(w)
		return
	}

	token := msg.Token()
	if token == "" {
		WriteInactiveIntrospection(w)
		return
	}

	ticket := h.resolveIntrospectedTicket(ctx, msg.TokenTypeHint(), token)
	if ticket == nil {
		WriteInactiveIntrospection(w)
		return
	}
	if ticket.Expired(h.Options.Clock.UtcNow()) {
		WriteInactiveIntrospection(w)
		return
	}

	// A confidential ticket must not be introspected by an unauthenticated
	// caller (spec.md §4.5, invariant (c)); authCtx.Result is Validated
	// only once ValidateClientAuthentication actually confirmed identity.
	authenticated := authCtx.Result == ClientAuthValidated
	if ticket.Properties.Confidential() && !authenticated {
		WriteInactiveIntrospection(w)
		return
	}

	usage := ticket.Properties.Usage()
	inAudience := authenticated && contains(ticket.Properties.Audiences(), clientID)
	switch usage {
	case UsageAccessToken, UsageIDToken:
		if !inAudience {
			WriteInactiveIntrospection(w)
			return
		}
	case UsageRefreshToken:
		if ticket.Properties.Items[ItemClientID] != clientID {
			WriteInactiveIntrospection(w)
			return
		}
	}

	resp := map[string]interface{}{
		"active":     true,
		"iss":        h.Options.Issuer,
		"sub":        ticket.Principal.ClaimValue(ClaimSubject),
		"aud":        ticket.Properties.Audiences(),
		"iat":        ticket.Properties.IssuedUTC.Unix(),
		"exp":        ticket.Properties.ExpiresUTC.Unix(),
		"token_type": "Bearer",
		"username":   ticket.Principal.ClaimValue(ClaimNameIdentifier),
		"scope":      joinSpace(ticket.Properties.Scopes()),
	}
	if nbf := ticket.Properties.IssuedUTC; !nbf.IsZero() {
		resp["nbf"] = nbf.Unix()
	}

	// Sensitive claims beyond the metadata set are only emitted when the
	// caller is itself in the ticket's audience (spec.md §4.5).
	if inAudience {
		for _, c := range ticket.Principal.Claims {
			if _, exists := resp[c.Type]; !exists {
				resp[c.Type] = c.Value
			}
		}
	}

	validationCtx := &ValidationEndpointContext{Ticket: ticket, Response: resp}
	h.Provider.ValidationEndpoint(ctx, validationCtx)
	if validationCtx.Error != nil {
		WriteInactiveIntrospection(w)
		return
	}

	_ = WriteJSON(w, http.StatusOK, validationCtx.Response)
}

// resolveIntrospectedTicket tries token_type_hint first, then the
// remaining usages in introspectionUsageOrder, each decoded with the one
// format configured for it (AccessTokenFormat, JWT for id_token,
// RefreshTokenFormat) (spec.md §4.5: "resolution order is hint, then
// access_token, identity_token, refresh_token").
func (h *Handler) resolveIntrospectedTicket(ctx context.Context, hint, token string) *Ticket {
	usages := introspectionUsageOrder
	if want := hintToUsage(hint); want != "" {
		usages = append([]Usage{want}, usages...)
	}
	tried := map[Usage]bool{}
	for _, usage := range usages {
		if tried[usage] {
			continue
		}
		tried[usage] = true
		format := h.Options.AccessTokenFormat
		if usage == UsageRefreshToken {
			format = h.Options.RefreshTokenFormat
		}
		if usage == UsageIDToken {
			format = FormatJWT
		}
		if ticket, err := h.DeserializeToken(ctx, format, usage, token); err == nil {
			return ticket
		}
	}
	return nil
}

func contains(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func hintToUsage(hint string) Usage {
	switch hint {
	case "access_token":
		return UsageAccessToken
	case "refresh_token":
		return UsageRefreshToken
	case "id_token":
		return UsageIDToken
	default:
		return ""
	}
}
