// Package exampleop wires the op middleware to an in-memory Storage and
// a minimal username/password login UI, the way the teacher's
// example/server/exampleop package wires its OpenIDProvider to an
// in-memory storage.Storage.
package exampleop

import (
	"context"
	"net/http"
	"time"

	"github.com/connectid/oidcop/example/server/storage"
	"github.com/connectid/oidcop/pkg/oidc"
	"github.com/connectid/oidcop/pkg/op"
)

// loginPath is where the AuthorizationEndpoint hook sends an
// unauthenticated browser to sign in.
const loginPath = "/login/username"

// Provider implements op.Provider against storage.Store. Hooks not
// overridden here fall back to op.DefaultProvider's no-ops.
type Provider struct {
	op.DefaultProvider
	store *storage.Store
}

// New returns a Provider backed by store.
func New(store *storage.Store) *Provider {
	return &Provider{store: store}
}

// ValidateClientRedirectUri requires that redirectURI exactly match one of
// the client's registered URIs.
func (p *Provider) ValidateClientRedirectUri(_ context.Context, c *op.ValidateClientRedirectURIContext) {
	client, ok := p.store.Client(c.ClientID)
	if !ok {
		c.Error = oidc.ErrInvalidRequestRedirectURI().WithDescription("unknown client_id")
		return
	}
	for _, u := range client.RedirectURIs {
		if u == c.RedirectURI {
			return
		}
	}
	c.Error = oidc.ErrInvalidRequestRedirectURI().WithDescription("redirect_uri is not registered for this client")
}

// ValidateClientAuthentication looks client_id/client_secret up against
// the store. A non-confidential (public/native) client is reported
// Skipped rather than Rejected, whatever secret was or was not presented.
func (p *Provider) ValidateClientAuthentication(_ context.Context, c *op.ValidateClientAuthenticationContext) {
	client, ok := p.store.Client(c.ClientID)
	if !ok {
		c.Result = op.ClientAuthRejected
		c.Error = oidc.ErrInvalidClient().WithDescription("unknown client_id")
		return
	}
	if !client.Confidential {
		c.Result = op.ClientAuthSkipped
		return
	}
	if c.ClientSecret != client.Secret {
		c.Result = op.ClientAuthRejected
		c.Error = oidc.ErrInvalidClient().WithDescription("client_secret does not match")
		return
	}
	c.Result = op.ClientAuthValidated
	c.Confidential = true
}

// AuthorizationEndpoint sends an unauthenticated browser to the login UI
// on the first pass, and resolves the signed-in Principal from the
// user_id parameter the login handler appends on its redirect back on the
// SignIn continuation (spec.md §4.3 steps 13-15).
func (p *Provider) AuthorizationEndpoint(_ context.Context, c *op.AuthorizationEndpointContext) {
	if userID := c.Message.Get("user_id"); userID != "" {
		user, ok := p.store.User(userID)
		if !ok {
			c.Error = oidc.ErrInvalidRequest().WithDescription("unknown user_id")
			return
		}
		c.Principal = principalForUser(user)
		return
	}
	http.Redirect(c.Writer, c.Request, loginPath+"?authRequestID="+c.UniqueID, http.StatusFound)
	c.Handled = true
}

// ValidateClientLogoutRedirectUri accepts any post_logout_redirect_uri;
// the example server has nothing further to register for clients on
// logout.
func (p *Provider) ValidateClientLogoutRedirectUri(context.Context, *op.ValidateClientLogoutRedirectURIContext) {
}

// GrantResourceOwnerCredentials implements the (legacy) password grant
// against storage.Store.Authenticate.
func (p *Provider) GrantResourceOwnerCredentials(_ context.Context, c *op.GrantContext) {
	user, ok := p.store.Authenticate(c.Message.Username(), c.Message.Password())
	if !ok {
		c.Error = oidc.ErrInvalidGrant().WithDescription("invalid username or password")
		return
	}
	c.Granted = op.NewTicket(principalForUser(user), time.Time{}, time.Time{}, op.UsageAccessToken, "password")
	c.Granted.Properties.SetScopes(c.Message.Scopes())
	c.Granted.Properties.Items[op.ItemClientID] = c.Message.ClientID()
	c.Granted.Properties.SetAudiences([]string{c.Message.ClientID()})
}

// GrantClientCredentials mints a client-only ticket with no end-user
// principal, scoped to whatever the confidential client requested.
func (p *Provider) GrantClientCredentials(_ context.Context, c *op.GrantContext) {
	c.Granted = op.NewTicket(&op.Principal{}, time.Time{}, time.Time{}, op.UsageAccessToken, "client_credentials")
	c.Granted.Properties.SetScopes(c.Message.Scopes())
	c.Granted.Properties.Items[op.ItemClientID] = c.Message.ClientID()
	c.Granted.Properties.SetAudiences([]string{c.Message.ClientID()})
}

func principalForUser(u *storage.User) *op.Principal {
	p := &op.Principal{}
	p.AddClaim(op.ClaimSubject, u.Subject, "access_token", "id_token")
	p.AddClaim(op.ClaimGivenName, u.GivenName, "id_token")
	p.AddClaim(op.ClaimFamilyName, u.FamilyName, "id_token")
	p.AddClaim(op.ClaimBirthdate, u.Birthdate, "id_token")
	p.AddClaim(op.ClaimEmail, u.Email, "id_token")
	p.AddClaim(op.ClaimPhoneNumber, u.PhoneNumber, "id_token")
	return p
}
