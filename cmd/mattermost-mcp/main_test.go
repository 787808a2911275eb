package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		rdb.Close()
		redisContainer.Terminate(ctx)
	}

	return rdb, cleanup
}

func TestHealthzHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthzHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReadyHandler_NoRedis(t *testing.T) {
	// Without Redis configured the process has nothing to wait on.
	handler := readyHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReadyHandler_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	t.Run("ready", func(t *testing.T) {
		handler := readyHandler(rdb)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		rdb.Close()
		handler := readyHandler(rdb)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "redis unavailable")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	handler := promhttp.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "mattermost_ratelimit_remaining")
}

var configEnvKeys = []string{
	"MM_URL", "MM_TOKEN", "MM_USER_AGENT", "REDIS_ADDR",
	"MCP_TRANSPORT", "MCP_LISTEN_ADDR", "OPS_LISTEN_ADDR",
	"LOG_LEVEL", "LOG_PRETTY",
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg config)
	}{
		{
			name:    "missing url",
			env:     map[string]string{"MM_TOKEN": "secret"},
			wantErr: true,
		},
		{
			name:    "missing token",
			env:     map[string]string{"MM_URL": "https://chat.example.com"},
			wantErr: true,
		},
		{
			name: "defaults",
			env: map[string]string{
				"MM_URL":   "https://chat.example.com",
				"MM_TOKEN": "secret",
			},
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, "mattermost-mcp/1.0", cfg.UserAgent)
				assert.Equal(t, "stdio", cfg.Transport)
				assert.Equal(t, "127.0.0.1:8480", cfg.MCPAddr)
				assert.Equal(t, "127.0.0.1:8481", cfg.OpsAddr)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.False(t, cfg.LogPretty)
				assert.Empty(t, cfg.RedisAddr)
			},
		},
		{
			name: "explicit values",
			env: map[string]string{
				"MM_URL":          "https://chat.example.com",
				"MM_TOKEN":        "secret",
				"MM_USER_AGENT":   "custom-agent/2.0",
				"REDIS_ADDR":      "localhost:6379",
				"MCP_TRANSPORT":   "http",
				"MCP_LISTEN_ADDR": "0.0.0.0:9000",
				"OPS_LISTEN_ADDR": "0.0.0.0:9001",
				"LOG_LEVEL":       "debug",
				"LOG_PRETTY":      "true",
			},
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, "custom-agent/2.0", cfg.UserAgent)
				assert.Equal(t, "localhost:6379", cfg.RedisAddr)
				assert.Equal(t, "http", cfg.Transport)
				assert.Equal(t, "0.0.0.0:9000", cfg.MCPAddr)
				assert.Equal(t, "0.0.0.0:9001", cfg.OpsAddr)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.True(t, cfg.LogPretty)
			},
		},
		{
			name: "invalid transport",
			env: map[string]string{
				"MM_URL":        "https://chat.example.com",
				"MM_TOKEN":      "secret",
				"MCP_TRANSPORT": "grpc",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			env: map[string]string{
				"MM_URL":    "https://chat.example.com",
				"MM_TOKEN":  "secret",
				"LOG_LEVEL": "trace",
			},
			wantErr: true,
		},
		{
			name: "invalid url",
			env: map[string]string{
				"MM_URL":   "chat.example.com",
				"MM_TOKEN": "secret",
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range configEnvKeys {
				t.Setenv(key, tc.env[key])
			}

			cfg, err := loadConfig()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
			assert.Equal(t, "secret", cfg.Token)
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MATTERMOST_MCP_TEST_KEY", "set-value")
	assert.Equal(t, "set-value", getEnv("MATTERMOST_MCP_TEST_KEY", "fallback"))

	t.Setenv("MATTERMOST_MCP_TEST_KEY", "")
	assert.Equal(t, "fallback", getEnv("MATTERMOST_MCP_TEST_KEY", "fallback"))
}
