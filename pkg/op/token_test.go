package op

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectid/oidcop/pkg/oidc"
)

type clientCredentialsProvider struct {
	DefaultProvider
}

func (clientCredentialsProvider) ValidateClientAuthentication(_ context.Context, c *ValidateClientAuthenticationContext) {
	c.Result = ClientAuthValidated
	c.Confidential = true
}

func (clientCredentialsProvider) GrantClientCredentials(_ context.Context, c *GrantContext) {
	c.Granted = NewTicket(&Principal{}, time.Time{}, time.Time{}, UsageAccessToken, "client_credentials")
	c.Granted.Properties.SetScopes(c.Message.Scopes())
	c.Granted.Properties.Items[ItemClientID] = c.Message.ClientID()
}

func newTokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleToken_ClientCredentialsGrant(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = clientCredentialsProvider{}

	form := url.Values{
		"grant_type": {oidc.GrantTypeClientCredentials},
		"scope":      {"api:read"},
	}
	req := newTokenRequest(form)
	req.SetBasicAuth("client-a", "secret")
	rec := httptest.NewRecorder()

	h.handleToken(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"access_token"`)
	assert.Contains(t, body, `"token_type":"Bearer"`)
	assert.Contains(t, body, `"scope":"api:read"`)
}

func TestHandleToken_MissingGrantTypeIsInvalidRequest(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = clientCredentialsProvider{}

	req := newTokenRequest(url.Values{})
	req.SetBasicAuth("client-a", "secret")
	rec := httptest.NewRecorder()

	h.handleToken(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestHandleToken_UnsupportedGrantType(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = clientCredentialsProvider{}

	form := url.Values{"grant_type": {"urn:unsupported:grant"}}
	req := newTokenRequest(form)
	req.SetBasicAuth("client-a", "secret")
	rec := httptest.NewRecorder()

	h.handleToken(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")
}

func TestExpiresInSeconds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seconds, ok := expiresInSeconds(now, now.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, int64(3600), seconds)

	_, ok = expiresInSeconds(now, now)
	assert.False(t, ok)

	_, ok = expiresInSeconds(now, now.Add(-time.Minute))
	assert.False(t, ok)
}

func TestWriteTokenResponse_IncludesIDTokenForAuthorizationCodeGrantWithOpenIDScope(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid"})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeAuthorizationCode, time.Time{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id_token"`)
}

func TestWriteTokenResponse_IncludesIDTokenForRefreshTokenGrantWithOpenIDScope(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid"})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeRefreshToken, time.Time{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id_token"`)
}

func TestWriteTokenResponse_OmitsIDTokenWhenScopeLacksOpenID(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"api:read"})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeClientCredentials, time.Time{})

	assert.NotContains(t, rec.Body.String(), `"id_token"`)
}

func TestWriteTokenResponse_OmitsIDTokenWhenResponseTypeExcludesIt(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid"})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)
	msg.Set(oidc.ParameterResponseType, "token")

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeAuthorizationCode, time.Time{})

	assert.NotContains(t, rec.Body.String(), `"id_token"`)
}

func TestWriteTokenResponse_IncludesRefreshTokenForOfflineAccess(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid", oidc.ScopeOfflineAccess})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeAuthorizationCode, time.Time{})

	assert.Contains(t, rec.Body.String(), `"refresh_token"`)
}

func TestWriteTokenResponse_CapsExpiryAtSourceRefreshTokenWhenSlidingDisabled(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	require.False(t, h.Options.UseSlidingExpiration)

	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid", oidc.ScopeOfflineAccess})

	now := h.Options.Clock.UtcNow()
	sourceExpiresUTC := now.Add(5 * time.Minute)
	require.True(t, sourceExpiresUTC.Before(now.Add(h.Options.AccessTokenLifetime)))
	require.True(t, sourceExpiresUTC.Before(now.Add(h.Options.RefreshTokenLifetime)))

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeRefreshToken, sourceExpiresUTC)

	var body struct {
		ExpiresIn int64 `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.LessOrEqual(t, body.ExpiresIn, int64(5*time.Minute/time.Second))
}

func TestWriteTokenResponse_DoesNotCapExpiryWhenSlidingEnabled(t *testing.T) {
	h := newTestHandlerWithOptions(t, WithSlidingExpiration())
	require.True(t, h.Options.UseSlidingExpiration)

	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid"})

	now := h.Options.Clock.UtcNow()
	sourceExpiresUTC := now.Add(5 * time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	rec := httptest.NewRecorder()
	msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

	h.writeTokenResponse(rec, req, msg, ticket, oidc.GrantTypeRefreshToken, sourceExpiresUTC)

	var body struct {
		ExpiresIn int64 `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.ExpiresIn, int64(5*time.Minute/time.Second))
}

func TestCloneItems_IsIndependentCopy(t *testing.T) {
	original := map[string]string{"a": "1"}
	clone := cloneItems(original)
	clone["a"] = "2"
	assert.Equal(t, "1", original["a"])
}

func TestHasScope(t *testing.T) {
	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetScopes([]string{"openid", oidc.ScopeOfflineAccess})
	assert.True(t, hasScope(ticket, oidc.ScopeOfflineAccess))
	assert.False(t, hasScope(ticket, "unknown"))
	assert.True(t, hasScope(ticket, oidc.ScopeOpenID))
}
