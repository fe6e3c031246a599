package autorest

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/edgeflare/autorest/pkg/entity"
	mw "github.com/edgeflare/autorest/pkg/httputil/middleware"
	"github.com/edgeflare/autorest/pkg/metrics"
	"github.com/edgeflare/autorest/pkg/rest"
	"github.com/edgeflare/autorest/pkg/schema"
	"github.com/edgeflare/autorest/pkg/source"

	// Registered dialects. Importing a dialect package is what makes its
	// engine available to connection resolution.
	_ "github.com/edgeflare/autorest/pkg/dialect/clickhouse"
	_ "github.com/edgeflare/autorest/pkg/dialect/mysql"
	_ "github.com/edgeflare/autorest/pkg/dialect/postgres"
	_ "github.com/edgeflare/autorest/pkg/dialect/sqlite"
	_ "github.com/edgeflare/autorest/pkg/dialect/trino"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Reflect the configured databases and start the REST API server",
	Long: `Reflects every configured database once, synthesizes the route table, and
serves it. The schema is profiled at startup and treated as immutable for
the process lifetime; restart to pick up schema changes.`,
	Run: runServer,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("db.uris", "d", "", "Comma-separated database connection URIs")
	f.StringP("server.listenAddr", "l", "", "REST server listen address")

	viper.BindPFlags(f) //nolint:errcheck
}

func runServer(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	// flag overrides
	if uris := viper.GetString("db.uris"); uris != "" {
		cfg.DB.URIs = uris
	}
	if listenAddr := viper.GetString("server.listenAddr"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	// Connection resolution and dialect lookup fail fast: a misconfigured
	// target must never reach the serving phase.
	targets, err := source.Resolve(cfg.DB.URIs, source.Discrete{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Dialect:  cfg.DB.Dialect,
	})
	if err != nil {
		logger.Fatal("connection resolution failed", zap.Error(err))
	}

	ctx := context.Background()
	catalogs := schema.Reflect(ctx, targets, logger)
	for _, cat := range catalogs {
		metrics.ReflectedTables.WithLabelValues(cat.Name).Set(float64(len(cat.Tables)))
		logger.Info("catalog reflected",
			zap.String("catalog", cat.Name),
			zap.String("dialect", cat.Dialect),
			zap.Int("tables", len(cat.Tables)))
	}

	registry := entity.Build(catalogs)
	server := rest.NewServer(catalogs, registry, logger)

	server.AddMiddleware(
		mw.RequestID,
		mw.CORSWithOptions(nil),
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}),
	)

	for _, route := range server.Routes() {
		logger.Debug("route synthesized",
			zap.String("method", route.Method),
			zap.String("pattern", route.Pattern),
			zap.String("kind", string(route.Kind)))
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server shutdown error", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if debug {
		logger.Warn("debug logging enabled")
	}
	return logger
}
