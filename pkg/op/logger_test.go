package op

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWithRequestID_StashesIDOnContext(t *testing.T) {
	logger, ctx := loggerWithRequestID(context.Background(), slog.Default())

	assert.NotNil(t, logger)
	id := requestID(ctx)
	assert.NotEmpty(t, id)
}

func TestLoggerWithRequestID_EachCallMintsDistinctID(t *testing.T) {
	_, ctx1 := loggerWithRequestID(context.Background(), slog.Default())
	_, ctx2 := loggerWithRequestID(context.Background(), slog.Default())

	assert.NotEqual(t, requestID(ctx1), requestID(ctx2))
}

func TestRequestID_EmptyWhenAbsent(t *testing.T) {
	assert.Equal(t, "", requestID(context.Background()))
}
