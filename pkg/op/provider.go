package op

import (
	"context"
	"net/http"

	"github.com/connectid/oidcop/pkg/oidc"
)

// ClientAuthResult is the three-state sum type of spec.md §9
// ("Skipped, Validated, Rejected") returned by ValidateClientAuthentication.
type ClientAuthResult int

const (
	// ClientAuthDefault means the provider expressed no opinion; the
	// middleware proceeds with its own default processing (treating the
	// client as unauthenticated).
	ClientAuthDefault ClientAuthResult = iota
	// ClientAuthSkipped means the provider explicitly chose not to
	// authenticate this request (distinct from Default so hosts can tell
	// "didn't look" apart from "looked, found nothing").
	ClientAuthSkipped
	// ClientAuthValidated means the client presented valid credentials.
	ClientAuthValidated
	// ClientAuthRejected means the client's credentials were actively
	// invalid; Outcome.Error should be set.
	ClientAuthRejected
)

// Outcome is embedded in every hook context. A hook signals an error by
// setting Error, asks the middleware to fall through to its default
// processing by leaving everything zero, and signals that it fully
// produced the HTTP response itself by setting Handled.
type Outcome struct {
	Error   *oidc.Error
	Skip    bool
	Handled bool
}

// Rejected is a convenience for hooks to bail out with an error.
func (o *Outcome) Rejected(err *oidc.Error) { o.Error = err }

// MatchEndpointContext is the input/output of Provider.MatchEndpoint.
type MatchEndpointContext struct {
	Outcome
	Path string
	Tag  EndpointTag
}

// ValidateClientRedirectURIContext is the input/output of
// Provider.ValidateClientRedirectUri.
type ValidateClientRedirectURIContext struct {
	Outcome
	ClientID    string
	RedirectURI string
}

// ValidateAuthorizationRequestContext is the input/output of
// Provider.ValidateAuthorizationRequest.
type ValidateAuthorizationRequestContext struct {
	Outcome
	Message *oidc.ProtocolMessage
}

// AuthorizationEndpointContext is the input/output of
// Provider.AuthorizationEndpoint. Writer/Request are populated so the
// host can take over the HTTP response directly (e.g. redirecting to its
// own login page) when it sets Handled.
type AuthorizationEndpointContext struct {
	Outcome
	Message  *oidc.ProtocolMessage
	UniqueID string
	Writer   http.ResponseWriter
	Request  *http.Request
	// Principal is nil on the first pass (no end user yet authenticated).
	// On a SignIn continuation, the host sets it to the signed-in user
	// before leaving Handled false, so the middleware can mint tokens
	// against it.
	Principal *Principal
}

// AuthorizationResponseContext is the input/output of
// Provider.AuthorizationEndpointResponse, the final rewrite point before
// the authorization redirect/form_post is rendered.
type AuthorizationResponseContext struct {
	Outcome
	Message  *oidc.ProtocolMessage
	Response *oidc.ProtocolMessage
}

// ValidateClientAuthenticationContext is the input/output of
// Provider.ValidateClientAuthentication.
type ValidateClientAuthenticationContext struct {
	Outcome
	ClientID     string
	ClientSecret string
	Message      *oidc.ProtocolMessage
	Result       ClientAuthResult
	Confidential bool
}

// ValidateTokenRequestContext is the input/output of
// Provider.ValidateTokenRequest.
type ValidateTokenRequestContext struct {
	Outcome
	Message *oidc.ProtocolMessage
	Ticket  *Ticket
}

// GrantContext is the input/output shared by every grant hook
// (GrantAuthorizationCode, GrantRefreshToken,
// GrantResourceOwnerCredentials, GrantClientCredentials,
// GrantCustomExtension).
type GrantContext struct {
	Outcome
	Message *oidc.ProtocolMessage
	Ticket  *Ticket // input: the stored/candidate ticket, where applicable
	Granted *Ticket // output: the ticket to issue tokens from
}

// ValidateClientLogoutRedirectURIContext is the input/output of
// Provider.ValidateClientLogoutRedirectUri.
type ValidateClientLogoutRedirectURIContext struct {
	Outcome
	ClientID    string
	RedirectURI string
}

// LogoutEndpointContext is the input/output of Provider.LogoutEndpoint.
// Writer/Request let the host render its own sign-out confirmation when
// it sets Handled.
type LogoutEndpointContext struct {
	Outcome
	Message *oidc.ProtocolMessage
	Writer  http.ResponseWriter
	Request *http.Request
}

// ProfileDataContext is the input/output of Provider.ProfileDataRequest,
// letting the host add claims to a userinfo response beyond what scope
// gating produces by default (spec.md §4.6).
type ProfileDataContext struct {
	Outcome
	Ticket         *Ticket
	RequestedScope []string
	Claims         map[string]interface{}
}

// ValidationEndpointContext is the input/output of
// Provider.ValidationEndpoint, letting the host customize or veto an
// introspection response (spec.md §4.5).
type ValidationEndpointContext struct {
	Outcome
	Ticket   *Ticket
	Response map[string]interface{}
}

// UserinfoEndpointContext is the input/output of
// Provider.UserinfoEndpoint, the final rewrite point for a userinfo
// response.
type UserinfoEndpointContext struct {
	Outcome
	Ticket   *Ticket
	Response map[string]interface{}
}

// TokenEndpointContext is the input/output of Provider.TokenEndpoint, the
// final rewrite point for a token response before it is written.
type TokenEndpointContext struct {
	Outcome
	Message  *oidc.ProtocolMessage
	Response map[string]interface{}
}

// CreateAccessTokenContext is the input/output of
// Provider.CreateAccessToken, letting the host add claims to the
// principal before the access token is serialized (spec.md §4.11).
type CreateAccessTokenContext struct {
	Outcome
	Ticket *Ticket
}

// CreateIdentityTokenContext is the input/output of
// Provider.CreateIdentityToken.
type CreateIdentityTokenContext struct {
	Outcome
	Ticket *Ticket
}

// Provider is the Event Provider interface of spec.md §2.9 and §9: the
// host implements it to validate clients, authorize requests, grant
// tokens, and customize token contents. Every method may reject
// (ctx.Error), short-circuit by writing the response itself
// (ctx.Handled), or accept default processing by doing nothing. Every
// context also carries ctx.Skip, but no handler in this package reads it;
// setting it has no effect.
type Provider interface {
	MatchEndpoint(context.Context, *MatchEndpointContext)
	ValidateClientRedirectUri(context.Context, *ValidateClientRedirectURIContext)
	ValidateAuthorizationRequest(context.Context, *ValidateAuthorizationRequestContext)
	AuthorizationEndpoint(context.Context, *AuthorizationEndpointContext)
	AuthorizationEndpointResponse(context.Context, *AuthorizationResponseContext)
	ValidateClientAuthentication(context.Context, *ValidateClientAuthenticationContext)
	ValidateTokenRequest(context.Context, *ValidateTokenRequestContext)
	GrantAuthorizationCode(context.Context, *GrantContext)
	GrantRefreshToken(context.Context, *GrantContext)
	GrantResourceOwnerCredentials(context.Context, *GrantContext)
	GrantClientCredentials(context.Context, *GrantContext)
	GrantCustomExtension(context.Context, *GrantContext)
	ValidateClientLogoutRedirectUri(context.Context, *ValidateClientLogoutRedirectURIContext)
	LogoutEndpoint(context.Context, *LogoutEndpointContext)
	ProfileDataRequest(context.Context, *ProfileDataContext)
	ValidationEndpoint(context.Context, *ValidationEndpointContext)
	UserinfoEndpoint(context.Context, *UserinfoEndpointContext)
	TokenEndpoint(context.Context, *TokenEndpointContext)
	CreateAccessToken(context.Context, *CreateAccessTokenContext)
	CreateIdentityToken(context.Context, *CreateIdentityTokenContext)
}

// DefaultProvider implements Provider with no-op methods. Hosts embed it
// and override only the hooks they need, matching spec.md §9 ("a single
// Provider interface with default no-op methods").
type DefaultProvider struct{}

func (DefaultProvider) MatchEndpoint(context.Context, *MatchEndpointContext)                               {}
func (DefaultProvider) ValidateClientRedirectUri(context.Context, *ValidateClientRedirectURIContext)       {}
func (DefaultProvider) ValidateAuthorizationRequest(context.Context, *ValidateAuthorizationRequestContext) {}
func (DefaultProvider) AuthorizationEndpoint(context.Context, *AuthorizationEndpointContext)               {}
func (DefaultProvider) AuthorizationEndpointResponse(context.Context, *AuthorizationResponseContext)       {}
func (DefaultProvider) ValidateClientAuthentication(context.Context, *ValidateClientAuthenticationContext) {}
func (DefaultProvider) ValidateTokenRequest(context.Context, *ValidateTokenRequestContext)                 {}
func (DefaultProvider) GrantAuthorizationCode(context.Context, *GrantContext)                              {}
func (DefaultProvider) GrantRefreshToken(context.Context, *GrantContext)                                   {}
func (DefaultProvider) GrantResourceOwnerCredentials(context.Context, *GrantContext)                       {}
func (DefaultProvider) GrantClientCredentials(context.Context, *GrantContext)                              {}

func (DefaultProvider) GrantCustomExtension(_ context.Context, c *GrantContext) {
	c.Error = oidc.ErrUnsupportedGrantType().WithDescription("grant type not implemented")
}

func (DefaultProvider) ValidateClientLogoutRedirectUri(context.Context, *ValidateClientLogoutRedirectURIContext) {
}
func (DefaultProvider) LogoutEndpoint(context.Context, *LogoutEndpointContext)           {}
func (DefaultProvider) ProfileDataRequest(context.Context, *ProfileDataContext)          {}
func (DefaultProvider) ValidationEndpoint(context.Context, *ValidationEndpointContext)   {}
func (DefaultProvider) UserinfoEndpoint(context.Context, *UserinfoEndpointContext)       {}
func (DefaultProvider) TokenEndpoint(context.Context, *TokenEndpointContext)             {}
func (DefaultProvider) CreateAccessToken(context.Context, *CreateAccessTokenContext)     {}
func (DefaultProvider) CreateIdentityToken(context.Context, *CreateIdentityTokenContext) {}

// EndpointTag identifies which of the five protocol endpoints (or
// discovery/JWKS, or none) a request was routed to (spec.md §4.1).
type EndpointTag string

const (
	EndpointNone          EndpointTag = ""
	EndpointAuthorization EndpointTag = "authorization"
	EndpointToken         EndpointTag = "token"
	EndpointIntrospection EndpointTag = "introspection"
	EndpointUserinfo      EndpointTag = "userinfo"
	EndpointLogout        EndpointTag = "logout"
	EndpointConfiguration EndpointTag = "configuration"
	EndpointCryptography  EndpointTag = "cryptography"
)
