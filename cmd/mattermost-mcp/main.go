// Command mattermost-mcp runs an MCP server bridging AI agents to a
// Mattermost instance. Configuration comes from the environment (optionally
// a .env file); the MCP transport and a small operational HTTP server run
// side by side until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mmbridge/mattermost-mcp/internal/mcp"
	"github.com/mmbridge/mattermost-mcp/pkg/client"
	"github.com/mmbridge/mattermost-mcp/pkg/logging"
	"github.com/mmbridge/mattermost-mcp/pkg/mattermost"
)

// config carries the environment-driven settings of the binary.
type config struct {
	ServerURL string `validate:"required,url"`
	Token     string `validate:"required"`
	UserAgent string `validate:"required"`
	RedisAddr string
	Transport string `validate:"oneof=stdio http"`
	MCPAddr   string `validate:"required"`
	OpsAddr   string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogPretty bool
}

// loadConfig reads the environment and validates the result.
func loadConfig() (config, error) {
	pretty, _ := strconv.ParseBool(os.Getenv("LOG_PRETTY"))
	cfg := config{
		ServerURL: os.Getenv("MM_URL"),
		Token:     os.Getenv("MM_TOKEN"),
		UserAgent: getEnv("MM_USER_AGENT", "mattermost-mcp/1.0"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Transport: getEnv("MCP_TRANSPORT", string(mcp.TransportStdio)),
		MCPAddr:   getEnv("MCP_LISTEN_ADDR", "127.0.0.1:8480"),
		OpsAddr:   getEnv("OPS_LISTEN_ADDR", "127.0.0.1:8481"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: pretty,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("mattermost-mcp exited")
	}
}

func run(cfg config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	} else {
		logger.Info().Msg("redis not configured, caching disabled and rate limit state in memory")
	}

	clientCfg := client.DefaultConfig(cfg.ServerURL, cfg.Token)
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Redis = redisClient

	api, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer api.Close()

	bridge := mattermost.New(api)
	srv := mcp.New(bridge)

	logger.Info().
		Str("server", cfg.ServerURL).
		Str("transport", cfg.Transport).
		Msg("starting mattermost-mcp")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The MCP transport finishing (EOF on stdio, client gone) ends
		// the whole process, ops server included.
		defer stop()
		switch mcp.Transport(cfg.Transport) {
		case mcp.TransportHTTP:
			return srv.ServeHTTP(gctx, cfg.MCPAddr)
		default:
			return srv.ServeStdio(gctx)
		}
	})

	g.Go(func() error {
		return serveOps(gctx, cfg.OpsAddr, redisClient, logger)
	})

	return g.Wait()
}

// serveOps runs the operational HTTP endpoints beside the MCP transport:
// liveness, readiness, and Prometheus metrics.
func serveOps(ctx context.Context, addr string, redisClient *redis.Client, logger zerolog.Logger) error {
	r := chi.NewRouter()
	r.Get("/healthz", healthzHandler)
	r.Get("/readyz", readyHandler(redisClient))
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops server error: %w", err)
		}
		close(errCh)
	}()

	logger.Info().Str("addr", addr).Msg("ops server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness. With Redis configured, readiness follows
// the Redis connection; without Redis the process is ready as soon as it
// serves.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "redis unavailable: %v", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
