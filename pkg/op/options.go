package op

import (
	"fmt"
	"strings"
	"time"
)

// TokenFormat selects whether a token kind is issued as an opaque
// reference (DataFormat-protected, or cached by key for codes) or as a
// signed JWT (spec.md §3, §4.11).
type TokenFormat int

const (
	FormatOpaque TokenFormat = iota
	FormatJWT
)

// Default lifetimes, matching the conventions the teacher ships as
// DefaultOPOpts (pkg/op/default_op.go).
const (
	DefaultAccessTokenLifetime       = time.Hour
	DefaultIdentityTokenLifetime     = time.Hour
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
	DefaultRefreshTokenLifetime      = 30 * 24 * time.Hour
)

// Options is the Client Options of spec.md §3: the full configuration
// surface of a middleware instance, assembled via functional Option
// values and validated once at New.
type Options struct {
	Issuer    string
	Endpoints Endpoints

	SigningCredentials []SigningCredentials

	AccessTokenLifetime       time.Duration
	IdentityTokenLifetime     time.Duration
	AuthorizationCodeLifetime time.Duration
	RefreshTokenLifetime      time.Duration
	UseSlidingExpiration      bool

	AccessTokenFormat  TokenFormat
	RefreshTokenFormat TokenFormat

	AllowInsecureHTTP           bool
	ApplicationCanDisplayErrors bool

	Clock                 Clock
	RandomNumberGenerator RandomNumberGenerator
	DataFormat            DataFormat
	Cache                 Cache
}

// Option configures an Options value, following the functional-options
// idiom the teacher uses throughout pkg/op (e.g. WithHttpInterceptors).
type Option func(*Options)

// WithEndpoints overrides the default endpoint paths.
func WithEndpoints(e Endpoints) Option {
	return func(o *Options) { o.Endpoints = e }
}

// WithAuthorizationEndpoint overrides only the authorization endpoint
// path; an empty path disables it.
func WithAuthorizationEndpoint(path string) Option {
	return func(o *Options) { o.Endpoints.Authorization = NewEndpoint(path) }
}

// WithTokenEndpoint overrides only the token endpoint path.
func WithTokenEndpoint(path string) Option {
	return func(o *Options) { o.Endpoints.Token = NewEndpoint(path) }
}

// WithIntrospectionEndpoint overrides only the introspection endpoint
// path; an empty path disables it.
func WithIntrospectionEndpoint(path string) Option {
	return func(o *Options) { o.Endpoints.Introspection = NewEndpoint(path) }
}

// WithUserinfoEndpoint overrides only the userinfo endpoint path; an
// empty path disables it.
func WithUserinfoEndpoint(path string) Option {
	return func(o *Options) { o.Endpoints.Userinfo = NewEndpoint(path) }
}

// WithLogoutEndpoint overrides only the logout endpoint path; an empty
// path disables it.
func WithLogoutEndpoint(path string) Option {
	return func(o *Options) { o.Endpoints.Logout = NewEndpoint(path) }
}

// WithSigningCredentials sets the Signing Key Set, in preference order
// (spec.md §3: "the first entry is the active signing key").
func WithSigningCredentials(creds ...SigningCredentials) Option {
	return func(o *Options) { o.SigningCredentials = creds }
}

// WithAccessTokenLifetime overrides DefaultAccessTokenLifetime.
func WithAccessTokenLifetime(d time.Duration) Option {
	return func(o *Options) { o.AccessTokenLifetime = d }
}

// WithIdentityTokenLifetime overrides DefaultIdentityTokenLifetime.
func WithIdentityTokenLifetime(d time.Duration) Option {
	return func(o *Options) { o.IdentityTokenLifetime = d }
}

// WithAuthorizationCodeLifetime overrides DefaultAuthorizationCodeLifetime.
func WithAuthorizationCodeLifetime(d time.Duration) Option {
	return func(o *Options) { o.AuthorizationCodeLifetime = d }
}

// WithRefreshTokenLifetime overrides DefaultRefreshTokenLifetime, the
// absolute cap a sliding refresh token can never exceed (spec.md §4.8).
func WithRefreshTokenLifetime(d time.Duration) Option {
	return func(o *Options) { o.RefreshTokenLifetime = d }
}

// WithSlidingExpiration sets use_sliding_expiration (spec.md §3, §4.4): a
// refresh grant's rotated tokens get a fresh full-length lifetime instead
// of being capped at the source refresh token's expires_utc.
func WithSlidingExpiration() Option {
	return func(o *Options) { o.UseSlidingExpiration = true }
}

// WithAccessTokenFormat selects opaque or JWT access tokens (spec.md
// §4.11; identity tokens are always JWT per OIDC Core and have no
// equivalent option).
func WithAccessTokenFormat(f TokenFormat) Option {
	return func(o *Options) { o.AccessTokenFormat = f }
}

// WithRefreshTokenFormat selects opaque or JWT refresh tokens.
func WithRefreshTokenFormat(f TokenFormat) Option {
	return func(o *Options) { o.RefreshTokenFormat = f }
}

// WithAllowInsecureHTTP disables the issuer-must-be-https check and the
// https checks on authorization requests and redirect_uri, for local
// development (spec.md §9 Open Question).
func WithAllowInsecureHTTP() Option {
	return func(o *Options) { o.AllowInsecureHTTP = true }
}

// WithApplicationCanDisplayErrors lets an authorization error that has no
// trusted redirect_uri fall through to the host's next handler, with the
// error readable via ErrorFromContext, instead of rendering the shared
// error page (spec.md §7). An error with a trusted redirect_uri is
// redirected there whatever this flag says.
func WithApplicationCanDisplayErrors() Option {
	return func(o *Options) { o.ApplicationCanDisplayErrors = true }
}

// WithClock overrides SystemClock, primarily for tests.
func WithClock(c Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithRandomNumberGenerator overrides CryptoRNG, primarily for tests.
func WithRandomNumberGenerator(r RandomNumberGenerator) Option {
	return func(o *Options) { o.RandomNumberGenerator = r }
}

// WithDataFormat sets the DataFormat capability used to protect/unprotect
// opaque tokens and authorization codes (spec.md §3).
func WithDataFormat(d DataFormat) Option {
	return func(o *Options) { o.DataFormat = d }
}

// WithCache sets the Distributed Cache capability backing both the
// Continuation Cache Adapter and the Authorization Code Cache Entry
// store (spec.md §3).
func WithCache(c Cache) Option {
	return func(o *Options) { o.Cache = c }
}

// New assembles and validates Options. It is the single place spec.md
// §9's Open Question decisions are enforced: issuer must be https unless
// AllowInsecureHTTP is set, and the first signing credential must be
// asymmetric.
func New(issuer string, opts ...Option) (*Options, error) {
	o := &Options{
		Issuer:                    issuer,
		Endpoints:                 DefaultEndpoints,
		AccessTokenLifetime:       DefaultAccessTokenLifetime,
		IdentityTokenLifetime:     DefaultIdentityTokenLifetime,
		AuthorizationCodeLifetime: DefaultAuthorizationCodeLifetime,
		RefreshTokenLifetime:      DefaultRefreshTokenLifetime,
		Clock:                     SystemClock{},
		RandomNumberGenerator:     CryptoRNG{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Options) validate() error {
	if o.Issuer == "" {
		return fmt.Errorf("op: issuer must not be empty")
	}
	if !o.AllowInsecureHTTP && !strings.HasPrefix(o.Issuer, "https://") {
		return fmt.Errorf("op: issuer %q must use https, or WithAllowInsecureHTTP must be set", o.Issuer)
	}
	if len(o.SigningCredentials) == 0 {
		return fmt.Errorf("op: at least one signing credential is required")
	}
	if !asymmetric(o.SigningCredentials[0]) {
		return fmt.Errorf("op: the first (active) signing credential must be asymmetric")
	}
	if o.Cache == nil {
		return fmt.Errorf("op: a Cache implementation is required")
	}
	if o.DataFormat == nil {
		return fmt.Errorf("op: a DataFormat implementation is required")
	}
	return nil
}
