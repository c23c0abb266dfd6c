package op

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAllAuth is a Provider whose ValidateClientAuthentication always
// reports the outcome configured at construction, letting each test drive
// handleIntrospection through a specific ClientAuthResult.
type acceptAllAuth struct {
	DefaultProvider
	result ClientAuthResult
}

func (p *acceptAllAuth) ValidateClientAuthentication(_ context.Context, c *ValidateClientAuthenticationContext) {
	c.Result = p.result
}

func newIntrospectRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("client-a", "secret")
	return req
}

func TestHandleIntrospection_ActiveAccessTokenInAudience(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthValidated}

	ticket := newTestTicket(UsageAccessToken)
	token, err := h.SerializeToken(context.Background(), FormatOpaque, ticket)
	require.NoError(t, err)

	form := url.Values{"token": {token}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"active":true`)
	assert.Contains(t, body, `"sub":"user-1"`)
}

func TestHandleIntrospection_UnauthenticatedConfidentialTicketIsInactive(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthSkipped}

	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetConfidential(true)
	token, err := h.SerializeToken(context.Background(), FormatOpaque, ticket)
	require.NoError(t, err)

	form := url.Values{"token": {token}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestHandleIntrospection_AudienceMismatchIsInactive(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthValidated}

	ticket := newTestTicket(UsageAccessToken)
	ticket.Properties.SetAudiences([]string{"someone-else"})
	token, err := h.SerializeToken(context.Background(), FormatOpaque, ticket)
	require.NoError(t, err)

	form := url.Values{"token": {token}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestHandleIntrospection_RefreshTokenClientMismatchIsInactive(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthValidated}

	ticket := newTestTicket(UsageRefreshToken)
	ticket.Properties.Items[ItemClientID] = "a-different-client"
	token, err := h.SerializeToken(context.Background(), h.Options.RefreshTokenFormat, ticket)
	require.NoError(t, err)

	form := url.Values{"token": {token}, "token_type_hint": {"refresh_token"}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestHandleIntrospection_RejectedClientIsInactive(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthRejected}

	form := url.Values{"token": {"anything"}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestHandleIntrospection_MalformedTokenIsInactive(t *testing.T) {
	h := newTestHandlerWithOptions(t)
	h.Provider = &acceptAllAuth{result: ClientAuthValidated}

	form := url.Values{"token": {"not-a-real-token"}}
	req := newIntrospectRequest(t, form)
	rec := httptest.NewRecorder()

	h.handleIntrospection(rec, req)

	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"a", "b"}, "b"))
	assert.False(t, contains([]string{"a", "b"}, "c"))
	assert.False(t, contains(nil, "a"))
}

func TestHintToUsage(t *testing.T) {
	assert.Equal(t, UsageAccessToken, hintToUsage("access_token"))
	assert.Equal(t, UsageRefreshToken, hintToUsage("refresh_token"))
	assert.Equal(t, UsageIDToken, hintToUsage("id_token"))
	assert.Equal(t, Usage(""), hintToUsage("bogus"))
}
