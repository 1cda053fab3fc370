package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzServer(t *testing.T) {
	h := NewHealthzServer(log.NewLogger(log.DiscardHandler()))
	require.NoError(t, h.Start("127.0.0.1:0"))
	defer func() {
		require.NoError(t, h.Shutdown(context.Background()))
	}()

	req, err := http.NewRequest(http.MethodGet, "http://"+h.Addr().String()+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthzShutdownBeforeStart(t *testing.T) {
	h := NewHealthzServer(log.NewLogger(log.DiscardHandler()))
	assert.NoError(t, h.Shutdown(context.Background()))
	assert.Nil(t, h.Addr())
}

func TestServiceDisabledByDefault(t *testing.T) {
	s := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, s.HealthzAddr())
	assert.Empty(t, s.MetricsAddr())
	require.NoError(t, s.Stop(context.Background()))
}

func TestServiceStartsServers(t *testing.T) {
	s := New(Config{
		Log:         log.NewLogger(log.DiscardHandler()),
		HealthzAddr: "127.0.0.1:0",
		Metrics: opmetrics.CLIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			ListenPort: 0,
		},
		Registry: opmetrics.NewRegistry(),
	})
	require.NoError(t, s.Start(context.Background()))
	defer func() {
		require.NoError(t, s.Stop(context.Background()))
	}()

	require.NotEmpty(t, s.HealthzAddr())
	require.NotEmpty(t, s.MetricsAddr())

	resp, err := http.Get("http://" + s.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServiceMetricsRequireRegistry(t *testing.T) {
	s := New(Config{
		Log:     log.NewLogger(log.DiscardHandler()),
		Metrics: opmetrics.CLIConfig{Enabled: true, ListenAddr: "127.0.0.1"},
	})
	assert.Error(t, s.Start(context.Background()))
}
