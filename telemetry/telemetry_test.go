package telemetry

import (
	"os"
	"testing"
	"time"

	"github.com/keyapp-labs/flowkit/build"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvEndpoints(t *testing.T) {
	tests := []struct {
		name             string
		kubernetesHost   string
		customEndpoint   string
		expectedEndpoint string
	}{
		{
			name:             "cluster collector inside kubernetes",
			kubernetesHost:   "10.0.0.1",
			expectedEndpoint: clusterCollector,
		},
		{
			name:             "no default outside kubernetes",
			expectedEndpoint: "",
		},
		{
			name:             "explicit endpoint wins",
			kubernetesHost:   "10.0.0.1",
			customEndpoint:   "http://custom-collector:4318",
			expectedEndpoint: "http://custom-collector:4318",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("KUBERNETES_SERVICE_HOST", test.kubernetesHost)
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", test.customEndpoint)

			if test.customEndpoint == "" {
				require.NoError(t, os.Unsetenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"))
			}

			config, err := LoadConfigFromEnv(t.Context(), "dev")
			require.NoError(t, err)

			assert.Equal(t, test.expectedEndpoint, config.Endpoint)
			assert.Equal(t, "dev", config.Environment)
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_LOGS_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "flowsim")
	t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "2s")

	config, err := LoadConfigFromEnv(t.Context(), "test")
	require.NoError(t, err)

	assert.True(t, config.Enabled)
	assert.True(t, config.LogsEnabled)
	assert.Equal(t, "flowsim", config.ServiceName)
	assert.Equal(t, build.Version, config.ServiceVersion)
	assert.Equal(t, 2*time.Second, config.Timeout)
}

func TestLoadConfigFromEnvRejectsBadBool(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "maybe")

	_, err := LoadConfigFromEnv(t.Context(), "test")
	require.Error(t, err)
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	p, err := Initialize(t.Context(), &Config{ServiceName: "flowsim"})
	require.NoError(t, err)

	assert.Nil(t, p.LogHandler())
	require.NoError(t, p.Shutdown(t.Context()))
}

func TestNilProviders(t *testing.T) {
	t.Parallel()

	var p *Providers

	assert.Nil(t, p.LogHandler())
	require.NoError(t, p.Shutdown(t.Context()))
}

func TestInitializeLogsOnly(t *testing.T) {
	t.Parallel()

	p, err := Initialize(t.Context(), &Config{
		ServiceName:  "flowsim",
		Enabled:      true,
		LogsEnabled:  true,
		LogsEndpoint: "http://127.0.0.1:4318",
		Timeout:      time.Second,
	})
	require.NoError(t, err)

	assert.Nil(t, p.tracer)
	assert.NotNil(t, p.LogHandler())
	require.NoError(t, p.Shutdown(t.Context()))
}
