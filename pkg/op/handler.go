package op

import (
	"log/slog"
	"net/http"

	"github.com/connectid/oidcop/internal/otel"
	"github.com/rs/cors"
)

// Handler is the single stateful object constructed once per mounted
// middleware instance and shared across requests; all per-request state
// lives on the *http.Request's context, not on Handler itself, so one
// Handler is safe for concurrent use (spec.md Design Note: "a Handler
// object bundling Options, Provider, and the injected capabilities").
type Handler struct {
	Options  *Options
	Provider Provider
	Logger   *slog.Logger

	continuation *continuationCache
}

// NewHandler returns a Handler ready to be mounted via ServeHTTP. provider may
// be nil, in which case DefaultProvider{} is used (every hook a no-op).
func NewHandler(opts *Options, provider Provider, logger *slog.Logger) *Handler {
	if provider == nil {
		provider = DefaultProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Options:      opts,
		Provider:     provider,
		Logger:       logger,
		continuation: newContinuationCache(opts.Cache, opts.Clock, opts.RandomNumberGenerator),
	}
}

// Mount wraps h with the default CORS policy (spec.md §4.5/§4.6: token
// introspection and userinfo are typically called cross-origin by
// browser-based clients) and returns an http.Handler chaining to next for
// unmatched paths, mirroring the teacher's server_http.go composition of
// chi, rs/cors, and the OP handler.
func (h *Handler) Mount(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})
	return withRequestLogging(h.Logger, c.Handler(h.ServeHTTP(next)))
}

// withRequestLogging enriches request-scoped logging with an xid request
// id, matching the teacher's op/logger.go middleware.
func withRequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("op").Start(r.Context(), "op.ServeHTTP "+r.URL.Path)
		defer span.End()
		reqLogger, ctx := loggerWithRequestID(ctx, logger)
		reqLogger.DebugContext(ctx, "handling request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
