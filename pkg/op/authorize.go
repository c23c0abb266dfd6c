package op

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/connectid/oidcop/pkg/oidc"
)

// handleAuthorization implements the Authorization Endpoint of spec.md
// §4.3: validates the incoming request in the order the spec fixes,
// mints a continuation entry, and invokes the Provider's
// AuthorizationEndpoint hook to let the host take over (render a login
// screen, consent page, etc). A request carrying unique_id instead of a
// fresh response_type is instead treated as a SignIn continuation.
func (h *Handler) handleAuthorization(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx, span := otel.Tracer("op").Start(r.Context(), "Handler.handleAuthorization")
	defer span.End()

	msg, err := DecodeQuery(r, oidc.RequestTypeAuthentication)
	if err != nil {
		h.dispatchAuthorizationError(w, r, next, "", oidc.ResponseModeQuery, oidc.AsError(err))
		return
	}

	if id := msg.UniqueID(); id != "" {
		h.continueSignIn(w, r.WithContext(ctx), next, msg, id)
		return
	}

	h.validateAndBeginAuthorization(w, r.WithContext(ctx), next, msg)
}

// validateAndBeginAuthorization runs the fixed validation order of
// spec.md §4.3 steps 1-14 against a fresh authorization request. Errors
// raised before redirect_uri has been validated against the Provider
// (steps 1-4) always render the native error page; from step 5 onward a
// validated redirect_uri lets errors redirect instead, preserving state.
func (h *Handler) validateAndBeginAuthorization(w http.ResponseWriter, r *http.Request, next http.Handler, msg *oidc.ProtocolMessage) {
	ctx := r.Context()
	nativeFail := func(err *oidc.Error) {
		h.dispatchAuthorizationError(w, r, next, "", oidc.ResponseModeQuery, err)
	}

	// Step 1: HTTPS check.
	if !h.Options.AllowInsecureHTTP && !isHTTPS(r) {
		nativeFail(oidc.ErrInvalidRequestRedirectURI().WithDescription("authorization requests must be made over https"))
		return
	}

	// Step 2: client_id.
	clientID := msg.ClientID()
	if clientID == "" {
		nativeFail(oidc.ErrInvalidRequestRedirectURI().WithDescription("client_id is required"))
		return
	}

	// Step 3: redirect_uri, required when scope contains openid; when
	// present it must be an absolute URI with no fragment, https unless
	// insecure http is allowed.
	redirectURI := msg.RedirectURI()
	if redirectURI == "" {
		if msg.HasScope(oidc.ScopeOpenID) {
			nativeFail(oidc.ErrInvalidRequestRedirectURI().WithDescription("redirect_uri is required when scope contains openid"))
			return
		}
	} else if err := validateRedirectURIFormat(redirectURI, h.Options.AllowInsecureHTTP); err != nil {
		nativeFail(oidc.ErrInvalidRequestRedirectURI().WithDescription("%s", err))
		return
	}

	// Step 4: Provider hook, the last check allowed to stay native.
	if redirectURI != "" {
		redirectCtx := &ValidateClientRedirectURIContext{ClientID: clientID, RedirectURI: redirectURI}
		h.Provider.ValidateClientRedirectUri(ctx, redirectCtx)
		if redirectCtx.Error != nil {
			nativeFail(redirectCtx.Error)
			return
		}
	}

	explicitMode := msg.ResponseMode()
	state := msg.State()
	mode := explicitMode
	if mode == "" {
		mode = oidc.ResponseModeQuery
	}
	fail := func(err *oidc.Error) {
		h.dispatchAuthorizationError(w, r, next, redirectURI, mode, err.WithState(state))
	}

	// Step 5: request/request_uri are unsupported.
	if msg.Has(oidc.ParameterRequest) {
		fail(oidc.ErrRequestNotSupported().WithDescription("the request parameter is not supported"))
		return
	}
	if msg.Has(oidc.ParameterRequestURI) {
		fail(oidc.ErrRequestURINotSupported().WithDescription("the request_uri parameter is not supported"))
		return
	}

	// Step 6-7: response_type required, flow detection against the fixed
	// set {none, code, token, id_token, code token, code id_token,
	// id_token token, code id_token token}.
	responseTypes := msg.ResponseTypes()
	if len(responseTypes) == 0 {
		fail(oidc.ErrUnsupportedResponseType().WithDescription("response_type is required"))
		return
	}
	// response_type=none issues no tokens; classifyResponseTypes reports
	// it as a flow with every token kind false, so the rest of this
	// function already treats it as a no-op flow without special-casing.
	_, wantsCode, wantsToken, wantsIDToken, ok := classifyResponseTypes(responseTypes)
	if !ok {
		fail(oidc.ErrUnsupportedResponseType().WithDescription("unsupported response_type %q", msg.ResponseType()))
		return
	}

	// Step 8: response_mode, defaulting to fragment for implicit/hybrid,
	// query for code; query combined with token/id_token is rejected.
	isImplicitOrHybrid := wantsToken || wantsIDToken
	if explicitMode == "" && isImplicitOrHybrid {
		mode = oidc.ResponseModeFragment
	}
	if isImplicitOrHybrid && mode == oidc.ResponseModeQuery {
		fail(oidc.ErrInvalidRequest().WithDescription("response_mode query is not permitted when the response carries a token in the redirect fragment"))
		return
	}

	// Step 9: nonce required for implicit/hybrid flows using openid scope.
	if isImplicitOrHybrid && msg.HasScope(oidc.ScopeOpenID) && msg.Nonce() == "" {
		fail(oidc.ErrInvalidRequest().WithDescription("nonce is required when response_type includes id_token or token together with openid scope"))
		return
	}

	// Step 10: id_token response type requires the openid scope.
	if wantsIDToken && !msg.HasScope(oidc.ScopeOpenID) {
		fail(oidc.ErrInvalidRequest().WithDescription("scope must contain openid when response_type includes id_token"))
		return
	}

	// Step 11: code response type requires the token endpoint.
	if wantsCode && !h.Options.Endpoints.Token.Enabled() {
		fail(oidc.ErrUnsupportedResponseType().WithDescription("the token endpoint is disabled; response_type code cannot be serviced"))
		return
	}

	// Step 12: Provider hook.
	validateCtx := &ValidateAuthorizationRequestContext{Message: msg}
	h.Provider.ValidateAuthorizationRequest(ctx, validateCtx)
	if validateCtx.Error != nil {
		fail(validateCtx.Error)
		return
	}
	if validateCtx.Handled {
		return
	}

	// Step 13: mint the continuation entry.
	uniqueID, err := h.continuation.Save(ctx, msg)
	if err != nil {
		fail(oidc.ErrServerError().WithParent(err))
		return
	}

	// Step 14: Provider hook; the host's own login UI takes over from here.
	entryCtx := &AuthorizationEndpointContext{Message: msg, UniqueID: uniqueID, Writer: w, Request: r}
	h.Provider.AuthorizationEndpoint(ctx, entryCtx)
	if entryCtx.Error != nil {
		fail(entryCtx.Error)
		return
	}
	if !entryCtx.Handled {
		http.Error(w, "authorization pending: no Provider.AuthorizationEndpoint hook handled the request", http.StatusInternalServerError)
	}
}

// isHTTPS reports whether r arrived over TLS, directly or as reported by
// a trusted reverse proxy's X-Forwarded-Proto header.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// validateRedirectURIFormat enforces spec.md §4.3 step 3: absolute URI,
// no fragment, https scheme unless insecure http is allowed.
func validateRedirectURIFormat(redirectURI string, allowInsecureHTTP bool) error {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("redirect_uri is not a valid URI")
	}
	if !u.IsAbs() {
		return fmt.Errorf("redirect_uri must be absolute")
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain a fragment")
	}
	if !allowInsecureHTTP && u.Scheme != "https" {
		return fmt.Errorf("redirect_uri must use https")
	}
	return nil
}

// classifyResponseTypes matches rt against the fixed flow set of spec.md
// §4.3 step 7, reporting which token kinds the flow calls for.
func classifyResponseTypes(rt []string) (isNone, wantsCode, wantsToken, wantsIDToken, ok bool) {
	if len(rt) == 1 && rt[0] == "none" {
		return true, false, false, false, true
	}
	seen := map[string]bool{}
	for _, v := range rt {
		switch v {
		case "code":
			wantsCode = true
		case "token":
			wantsToken = true
		case "id_token":
			wantsIDToken = true
		default:
			return false, false, false, false, false
		}
		if seen[v] {
			return false, false, false, false, false
		}
		seen[v] = true
	}
	return false, wantsCode, wantsToken, wantsIDToken, true
}

// continueSignIn resumes a previously-suspended authorization request
// after the host's own sign-in UI calls back with unique_id, per spec.md
// §4.3 steps 13-15: load the continuation entry, overlay it under the
// live (sign-in result) message, issue tokens in code -> access_token ->
// id_token order so c_hash/at_hash can be computed, then remove the
// continuation entry.
func (h *Handler) continueSignIn(w http.ResponseWriter, r *http.Request, next http.Handler, live *oidc.ProtocolMessage, uniqueID string) {
	ctx := r.Context()

	stored, ok, err := h.continuation.Load(ctx, uniqueID)
	if !ok || err != nil {
		h.dispatchAuthorizationError(w, r, next, "", oidc.ResponseModeQuery, oidc.ErrInvalidRequest().WithDescription("the authorization request has timed out or was already completed"))
		return
	}
	MergeContinuation(live, stored)

	redirectURI := live.RedirectURI()
	mode := live.ResponseMode()
	if mode == "" {
		mode = oidc.ResponseModeQuery
		if live.HasResponseType("token") || live.HasResponseType("id_token") {
			mode = oidc.ResponseModeFragment
		}
	}
	state := live.State()

	fail := func(e *oidc.Error) {
		h.dispatchAuthorizationError(w, r, next, redirectURI, mode, e.WithState(state))
	}

	entryCtx := &AuthorizationEndpointContext{Message: live, UniqueID: uniqueID, Writer: w, Request: r}
	h.Provider.AuthorizationEndpoint(ctx, entryCtx)
	if entryCtx.Error != nil {
		fail(entryCtx.Error)
		return
	}
	if entryCtx.Handled {
		_ = h.continuation.Remove(ctx, uniqueID)
		return
	}
	if entryCtx.Principal == nil {
		fail(oidc.ErrServerError().WithDescription("Provider.AuthorizationEndpoint did not set a Principal on the SignIn continuation"))
		return
	}

	resp := oidc.NewProtocolMessage(oidc.RequestTypeAuthentication)
	if state != "" {
		resp.Set(oidc.ParameterState, state)
	}

	var code, accessToken string
	wantsCode := live.HasResponseType("code")
	wantsToken := live.HasResponseType("token")
	wantsIDToken := live.HasResponseType("id_token")

	if wantsCode || wantsToken {
		ticket := h.buildTicketFromMessage(live, UsageAccessToken, entryCtx.Principal)
		if wantsCode {
			codeTicket := h.buildTicketFromMessage(live, UsageCode, entryCtx.Principal)
			code, err = h.IssueAuthorizationCode(ctx, codeTicket)
			if err != nil {
				fail(oidc.ErrServerError().WithParent(err))
				return
			}
			resp.Set(oidc.ParameterCode, code)
		}
		if wantsToken {
			accessToken, err = h.SerializeToken(ctx, h.Options.AccessTokenFormat, ticket)
			if err != nil {
				fail(oidc.ErrServerError().WithParent(err))
				return
			}
			resp.Set(oidc.ParameterAccessToken, accessToken)
			resp.Set("token_type", "Bearer")
		}
	}

	if wantsIDToken {
		idTicket := h.buildTicketFromMessage(live, UsageIDToken, entryCtx.Principal)
		var atHash, cHash *string
		if accessToken != "" {
			v := leftHalfSHA256(accessToken)
			atHash = &v
		}
		if code != "" {
			v := leftHalfSHA256(code)
			cHash = &v
		}
		idToken, err := h.signJWT(idTicket, atHash, cHash)
		if err != nil {
			fail(oidc.ErrServerError().WithParent(err))
			return
		}
		resp.Set("id_token", idToken)
	}

	respCtx := &AuthorizationResponseContext{Message: live, Response: resp}
	h.Provider.AuthorizationEndpointResponse(ctx, respCtx)
	if respCtx.Error != nil {
		fail(respCtx.Error)
		return
	}

	_ = h.continuation.Remove(ctx, uniqueID)

	if err := RenderAuthorizationResponse(w, r, redirectURI, mode, resp); err != nil {
		h.Logger.ErrorContext(ctx, "rendering authorization response", "error", err)
	}
}

// buildTicketFromMessage derives a Ticket for the given usage from the
// merged authorization message, stamping the protocol-context items the
// rest of the pipeline (grants, introspection, userinfo) consults.
func (h *Handler) buildTicketFromMessage(msg *oidc.ProtocolMessage, usage Usage, principal *Principal) *Ticket {
	now := h.Options.Clock.UtcNow()
	lifetime := h.Options.AccessTokenLifetime
	if usage == UsageCode {
		lifetime = h.Options.AuthorizationCodeLifetime
	} else if usage == UsageIDToken {
		lifetime = h.Options.IdentityTokenLifetime
	}
	ticket := NewTicket(principal, now, now.Add(lifetime), usage, "oidc")
	ticket.Properties.Items[ItemClientID] = msg.ClientID()
	ticket.Properties.Items[ItemRedirectURI] = msg.RedirectURI()
	ticket.Properties.Items[ItemResource] = msg.Resource()
	ticket.Properties.SetScopes(msg.Scopes())
	if nonce := msg.Nonce(); nonce != "" {
		ticket.Properties.Items[ItemNonce] = nonce
	}
	ticket.Properties.SetAudiences([]string{msg.ClientID()})
	return ticket
}
