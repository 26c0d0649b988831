package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/factory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server serves the REST API over a fixed set of data models.
type Server struct {
	models      []dataeditor.DataModel
	auth        *[32]byte
	publicReads bool
}

// NewServer creates a new Server instance
func NewServer(models []dataeditor.DataModel, auth dataeditor.AuthConfig) *Server {
	return &Server{
		models:      models,
		auth:        newBasicAuth(auth.Credentials),
		publicReads: auth.PublicReads,
	}
}

func main() {
	configPath := flag.String("config", getEnv("DATAEDITOR_CONFIG", ""), "Path to a YAML or JSON configuration file")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(config.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		sugar.Fatalw("server error", "error", err)
	}
}

// loadConfig reads the optional config file and applies environment overrides.
func loadConfig(path string) (*dataeditor.Config, error) {
	config := dataeditor.DefaultConfig()
	if path != "" {
		var err error
		if config, err = dataeditor.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *dataeditor.Config) {
	config.SchemaDirectory = getEnv("SCHEMA_DIR", config.SchemaDirectory)
	config.Server.Address = getEnv("LISTEN_ADDRESS", config.Server.Address)
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Address = ":" + port
	}
	config.Server.APIPrefix = getEnv("API_PREFIX", config.Server.APIPrefix)
	config.Server.StaticDirectory = getEnv("STATIC_DIR", config.Server.StaticDirectory)
	config.Auth.Credentials.Login = getEnv("API_LOGIN", config.Auth.Credentials.Login)
	config.Auth.Credentials.Password = getEnv("API_PASSWORD", config.Auth.Credentials.Password)
	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)

	db := &config.Storage.Postgres
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvInt("DB_PORT", db.Port)
	db.Database = getEnv("DB_NAME", db.Database)
	db.Username = getEnv("DB_USER", db.Username)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.SSLMode = getEnv("DB_SSL_MODE", db.SSLMode)
	db.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", db.MaxConnections)
}

func run(ctx context.Context, config *dataeditor.Config) error {
	sugar := zap.S()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	editor, err := factory.NewEditorWithConfig(ctx, config, factory.Options{Metrics: registry})
	if err != nil {
		return fmt.Errorf("failed to build data models: %w", err)
	}
	defer func() {
		if err := editor.Close(); err != nil {
			sugar.Warnw("failed to release storage", "error", err)
		}
	}()

	if config.Auth.Credentials.IsZero() {
		sugar.Warnw("no API credentials configured, the API is open to everyone")
	}

	server := NewServer(editor.Models, config.Auth)
	httpServer := &http.Server{
		Addr:         config.Server.Address,
		Handler:      NewHandler(server, config, registry),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("starting server", "address", config.Server.Address, "prefix", config.Server.APIPrefix, "models", len(editor.Models))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error running api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		sugar.Debugw("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown did not complete gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
