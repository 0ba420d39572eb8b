package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

type recordingLogger struct {
	observability.Logger
	fields []observability.Field
}

func (r *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{Logger: observability.NopLogger(), fields: append(append([]observability.Field(nil), r.fields...), fields...)}
}

func TestFromOr(t *testing.T) {
	fallback := &recordingLogger{Logger: observability.NopLogger()}
	assert.Same(t, fallback, FromOr(context.Background(), fallback))
	assert.NotNil(t, FromOr(context.Background(), nil))

	ctx := With(context.Background(), fallback)
	assert.Same(t, fallback, From(ctx))
}

func TestEnrich(t *testing.T) {
	base := &recordingLogger{Logger: observability.NopLogger()}
	ctx, logger := Enrich(context.Background(), base, observability.F("order_id", int64(7)))

	got, ok := logger.(*recordingLogger)
	assert.True(t, ok)
	assert.Equal(t, []observability.Field{observability.F("order_id", int64(7))}, got.fields)
	assert.Same(t, logger, From(ctx))
}
