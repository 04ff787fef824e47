package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	lognoop "go.opentelemetry.io/otel/log/noop"

	"github.com/kellywsq03/RAGify/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_EnabledInstallsProviders(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	cfg := NewDefaultConfig()
	cfg.Enabled = true

	// Exporters connect lazily, so no collector is needed here.
	tel, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
	assert.Same(t, tel.meterProvider, otel.GetMeterProvider())
	assert.NotNil(t, tel.LoggerProvider())

	lp := lognoop.NewLoggerProvider()
	tel.SetLoggerProvider(lp)
	assert.Equal(t, lp, tel.LoggerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""

	tel, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.IsEnabled()
		_ = tel.Degraded()
		_ = tel.Shutdown(context.Background())
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled local", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"secure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}, false},
		{"sampling out of range", func(c *Config) { c.Enabled = true; c.SamplingRate = 2 }, true},
		{"zero metrics interval", func(c *Config) { c.Enabled = true; c.MetricsInterval = 0 }, true},
		{"metrics off ignores interval", func(c *Config) {
			c.Enabled = true
			c.Metrics = false
			c.MetricsInterval = 0
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "ragify-api",
		Endpoint:        "https://otel.example.com:4318",
		Protocol:        "http/protobuf",
		SamplingRate:    0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "ragify-api", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.InDelta(t, 0.25, cfg.SamplingRate, 1e-9)
	assert.NoError(t, cfg.Validate())

	local := FromObservability(config.ObservabilityConfig{Endpoint: "localhost:4317"}, "")
	assert.True(t, local.Insecure)
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()
	defer tt.Restore()

	_, span := otel.Tracer("ragify/test").Start(context.Background(), "stage.run")
	span.SetAttributes(attribute.Int("chunks", 4), attribute.String("source", "pdf"))
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()

	tt.AssertSpanExists(t, "stage.run")
	tt.AssertSpanAttribute(t, "stage.run", "chunks", int64(4))
	tt.AssertSpanAttribute(t, "stage.run", "source", "pdf")
	tt.AssertSpanError(t, "stage.run")
}
