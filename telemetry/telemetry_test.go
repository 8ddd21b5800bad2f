package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/go-thor/restproxy/errors"
)

func TestSetup_RequiresConfig(t *testing.T) {
	_, err := Setup(context.Background(), Config{Endpoint: "localhost:4317"})
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	_, err = Setup(context.Background(), Config{ServiceName: "restproxy"})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestSetup_InstallsProviders(t *testing.T) {
	// Exporters connect lazily, so an unreachable collector is fine here
	p, err := Setup(context.Background(), Config{ServiceName: "restproxy-test", Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)
	assert.Equal(t, p.TracerProvider, otel.GetTracerProvider())
	assert.Equal(t, p.MeterProvider, otel.GetMeterProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}
