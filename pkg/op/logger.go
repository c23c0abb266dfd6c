package op

import (
	"context"
	"log/slog"

	"github.com/rs/xid"
)

type requestIDKey struct{}

// loggerWithRequestID mints an xid request id, stores it on ctx, and
// returns a logger that annotates every record with it, mirroring the
// teacher's op/logger.go request-scoped logging.
func loggerWithRequestID(ctx context.Context, logger *slog.Logger) (*slog.Logger, context.Context) {
	id := xid.New().String()
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return logger.With("request_id", id), ctx
}

// requestID returns the xid stashed on ctx by loggerWithRequestID, or ""
// if none is present.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
