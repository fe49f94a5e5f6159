// Command authd serves the authcore engine over HTTP: token lifecycle and
// principal routes under /api/v1, Prometheus metrics on /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/httpapi"
	"github.com/croftbar/authcore/memstore"
	"github.com/croftbar/authcore/metrics/export/prometheus"
	"github.com/croftbar/authcore/pgstore"
	"github.com/croftbar/authcore/rbac"
)

func main() {
	configFile := flag.String("config", os.Getenv("AUTHD_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("authd failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(cfg *serverConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	provider, cleanup, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engineCfg := authcore.DefaultConfig()
	engineCfg.JWT.Secret = []byte(cfg.JWTSecret)
	engineCfg.JWT.AccessTTL = cfg.AccessTTL
	engineCfg.RefreshTTL = cfg.RefreshTTL
	engineCfg.Metrics.Enabled = cfg.MetricsEnabled

	builder := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithPrincipalProvider(provider)

	if cfg.AuditLog {
		builder = builder.WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := bootstrapAdmin(ctx, cfg, engine, logger); err != nil {
		return err
	}

	api := httpapi.NewServer(engine, logger)
	router := api.Router()
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(prometheus.NewExporter(engine).Handler()))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newProvider(ctx context.Context, cfg *serverConfig, logger *zap.Logger) (authcore.PrincipalProvider, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database_url configured, principals are in-memory only")
		return memstore.New(), func() {}, nil
	}

	store, err := pgstore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to postgres principal store")
	return store, store.Close, nil
}

// bootstrapAdmin seeds the initial administrator from config. An existing
// account with the same email is left untouched.
func bootstrapAdmin(ctx context.Context, cfg *serverConfig, engine *authcore.Engine, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	principal, err := engine.CreateAccount(ctx, authcore.CreateAccountRequest{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		FullName: "Administrator",
		Role:     rbac.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, authcore.ErrPrincipalExists) {
			logger.Info("admin account already present", zap.String("email", cfg.AdminEmail))
			return nil
		}
		return err
	}

	logger.Info("admin account created", zap.String("id", principal.ID))
	return nil
}
