package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))

	// a foreign value under the same string must not leak through
	ctx = context.WithValue(context.Background(), "request_id", "spoofed")
	assert.Empty(t, GetRequestID(ctx))
}

func TestWithLogger(t *testing.T) {
	logger := struct{ name string }{"l"}
	ctx := WithLogger(context.Background(), logger)
	assert.Equal(t, logger, ctx.Value(LoggerKey))
}
