package op

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectid/oidcop/pkg/oidc"
)

func TestDecodeQuery_BuildsMessageFromURLQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/connect/authorize?client_id=client-a&scope=openid", nil)
	msg, err := DecodeQuery(req, oidc.RequestTypeAuthentication)
	require.NoError(t, err)

	assert.Equal(t, "client-a", msg.ClientID())
	assert.Equal(t, []string{"openid"}, msg.Scopes())
}

func TestDecodeForm_RejectsNonPOST(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/connect/token", nil)
	rec := httptest.NewRecorder()

	_, err := DecodeForm(rec, req, oidc.RequestTypeToken)
	assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
}

func TestDecodeForm_RejectsWrongContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/connect/token", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	_, err := DecodeForm(rec, req, oidc.RequestTypeToken)
	assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
}

func TestDecodeForm_ParsesBodyNotQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/connect/token?grant_type=ignored", strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	msg, err := DecodeForm(rec, req, oidc.RequestTypeToken)
	require.NoError(t, err)
	assert.Equal(t, "client_credentials", msg.Get(oidc.ParameterGrantType))
}

func TestMergeContinuation_StoredNeverClobbersLive(t *testing.T) {
	live := oidc.NewProtocolMessage(oidc.RequestTypeAuthentication)
	live.Set(oidc.ParameterState, "live-state")
	stored := oidc.NewProtocolMessage(oidc.RequestTypeAuthentication)
	stored.Set(oidc.ParameterState, "stored-state")
	stored.Set(oidc.ParameterClientID, "client-a")

	MergeContinuation(live, stored)

	assert.Equal(t, "live-state", live.State())
	assert.Equal(t, "client-a", live.ClientID())
}

func TestRequireBasicOrFormClientAuth(t *testing.T) {
	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/connect/token", nil)
		req.SetBasicAuth("client-a", "secret")
		msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

		id, secret, err := RequireBasicOrFormClientAuth(req, msg)
		require.NoError(t, err)
		assert.Equal(t, "client-a", id)
		assert.Equal(t, "secret", secret)
	})

	t.Run("form auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/connect/token", nil)
		msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)
		msg.Set(oidc.ParameterClientID, "client-a")
		msg.Set(oidc.ParameterClientSecret, "secret")

		id, secret, err := RequireBasicOrFormClientAuth(req, msg)
		require.NoError(t, err)
		assert.Equal(t, "client-a", id)
		assert.Equal(t, "secret", secret)
	})

	t.Run("both present is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/connect/token", nil)
		req.SetBasicAuth("client-a", "secret")
		msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)
		msg.Set(oidc.ParameterClientID, "client-a")
		msg.Set(oidc.ParameterClientSecret, "secret")

		_, _, err := RequireBasicOrFormClientAuth(req, msg)
		assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
	})

	t.Run("neither present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/connect/token", nil)
		msg := oidc.NewProtocolMessage(oidc.RequestTypeToken)

		id, secret, err := RequireBasicOrFormClientAuth(req, msg)
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.Empty(t, secret)
	})
}
