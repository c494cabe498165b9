package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/config"
	"github.com/rsbst23/groundup/pkg/httputil"
	"github.com/rsbst23/groundup/pkg/inventory"
	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/permissions"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/storage"
	"github.com/rsbst23/groundup/pkg/tenancy"
	"github.com/rsbst23/groundup/pkg/tenants"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const replicaCheckInterval = 30 * time.Second

func main() {
	tablePath := flag.String("permission-table", os.Getenv("GROUNDUP_PERMISSION_TABLE"), "YAML file overriding operation requirements")
	printTable := flag.Bool("print-permissions", false, "Print the effective permission table as YAML and exit")
	envFile := flag.String("env-file", "", "Load GROUNDUP_* variables from a dotenv file")
	flag.Parse()

	boot := logrus.New()
	boot.SetFormatter(&logrus.JSONFormatter{})
	boot.SetLevel(logrus.InfoLevel)

	if err := config.LoadEnvFile(*envFile); err != nil {
		boot.WithError(err).Fatal("Failed to load env file")
	}
	if *tablePath == "" {
		*tablePath = os.Getenv("GROUNDUP_PERMISSION_TABLE")
	}

	registry, err := permissions.Build(*tablePath)
	if err != nil {
		boot.WithError(err).Fatal("Failed to build permission table")
	}
	boot.WithFields(logrus.Fields{
		"operations": registry.Len(),
		"override":   *tablePath,
	}).Info("Permission table loaded")

	if *printTable {
		if err := registry.WriteYAML(os.Stdout); err != nil {
			boot.WithError(err).Fatal("Failed to print permission table")
		}
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		boot.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, registry, boot); err != nil {
		boot.WithError(err).Fatal("groundup-api exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, registry *authz.Registry, boot *logrus.Logger) error {
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName).
		WithField("version", version)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.Register("otel", providers.Shutdown)
	}

	conns, err := storage.NewConnectionManager(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	shutdown.Register("database", func(context.Context) error { return conns.Close() })
	go monitorReplicas(ctx, conns, logger)

	if err := rbac.RunMigrations(ctx, conns.Primary()); err != nil {
		return fmt.Errorf("rbac migrations: %w", err)
	}
	if err := inventory.RunMigrations(ctx, conns.Primary()); err != nil {
		return fmt.Errorf("inventory migrations: %w", err)
	}
	boot.Info("Database migrations applied")

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
		metrics.AuthzRegisteredOperations.Set(float64(registry.Len()))
	}

	var (
		redisClient *redis.Client
		bus         *rbac.RedisBus
	)
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		bus = rbac.NewRedisBus(redisClient, cfg.Authz.InvalidationChannel, func(err error) {
			logger.WithError(err).Warn("Invalid grant invalidation message")
		})
	}

	// Local caches are invalidated synchronously through localBus; Redis
	// carries the same events to the other instances and back into localBus.
	localBus := rbac.NewLocalBus()
	publishers := rbac.MultiPublisher{localBus}
	if bus != nil {
		publishers = append(publishers, bus)
		relay, err := bus.Subscribe(ctx, func(event rbac.Invalidation) {
			_ = localBus.Publish(ctx, event)
		})
		if err != nil {
			return fmt.Errorf("subscribe to grant invalidations: %w", err)
		}
		shutdown.Register("invalidation relay", func(context.Context) error { return relay() })
	}
	storeOpts := []rbac.StoreOption{rbac.WithPublisher(publishers)}
	if !cfg.CacheEnabled() {
		// Replica lag could outlive an invalidation, so cached grants are
		// always resolved from the primary.
		storeOpts = append(storeOpts, rbac.WithReplicas(conns))
	}
	rbacStore := rbac.NewStore(conns.Primary(), storeOpts...)

	if _, err := rbac.EnsureSystemAdminRole(ctx, rbacStore); err != nil {
		return fmt.Errorf("ensure %s role: %w", rbac.SystemAdminRole, err)
	}

	resolver := rbac.NewResolver(rbacStore,
		rbac.WithConcurrency(cfg.Authz.ResolverConcurrency),
		rbac.WithMetrics(metrics),
	)

	var grantSource rbac.GrantResolver = resolver
	if cfg.Authz.BreakerFailures > 0 {
		grantSource = rbac.NewBreakerResolver(resolver, rbac.BreakerConfig{
			Failures: uint32(cfg.Authz.BreakerFailures),
			Cooldown: cfg.Authz.BreakerCooldown,
			OnStateChange: func(from, to string) {
				logger.WithField("from", from).WithField("to", to).Warn("Grant resolver circuit breaker changed state")
			},
		})
	}

	authorizer, err := authz.NewLazy(registry, func(context.Context) (authz.Authorizer, error) {
		grants := grantSource
		if cfg.CacheEnabled() {
			// Subscribe on the process context: the cache outlives the
			// request that triggered construction.
			cache, err := rbac.NewCachingResolver(ctx, grantSource, localBus, rbac.CacheConfig{
				Size: cfg.Authz.CacheSize,
				TTL:  cfg.Authz.CacheTTL,
			}, metrics)
			if err != nil {
				return nil, err
			}
			shutdown.Register("grant cache", func(context.Context) error { return cache.Close() })
			grants = cache
		}
		return authz.NewInterceptor(registry, grants,
			authz.WithLogger(logger),
			authz.WithMetrics(metrics),
		)
	}, authz.WithLogger(logger), authz.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("build authorizer: %w", err)
	}

	tenantService := tenants.NewGuardedService(
		tenants.NewService(tenants.NewStore(conns.Primary()), rbacStore), authorizer)
	inventoryService := inventory.NewGuardedService(
		inventory.NewService(inventory.NewStore(conns.Primary())), authorizer)

	authn, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	boot.WithField("mode", cfg.Auth.Mode).Info("Authentication configured")

	router := mux.NewRouter()
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(tenancy.Middleware(authn, logger))
	tenants.NewHandlers(tenantService, logger).RegisterRoutes(api)
	inventory.NewHandlers(inventoryService, logger).RegisterRoutes(api)

	apiServer.Handler = otelhttp.NewHandler(httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)(router), "groundup-api")

	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, observability.NewHealthChecker(conns.Primary(), redisClient, version))
	observability.RegisterMetricsEndpoint(healthRouter, promRegistry)
	healthServer.Handler = healthRouter

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.WithError(err).Error("HTTP server failed")
		if shutdownErr := shutdown.Shutdown(); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	}
	return shutdown.Wait(ctx)
}

func newAuthenticator(cfg config.AuthConfig) (tenancy.Authenticator, error) {
	if cfg.Mode == config.AuthModeJWT {
		return tenancy.NewJWTAuthenticator([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	}
	return tenancy.HeaderAuthenticator{}, nil
}

// monitorReplicas drops replicas that stop answering pings
func monitorReplicas(ctx context.Context, conns *storage.ConnectionManager, logger *observability.Logger) {
	ticker := time.NewTicker(replicaCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if removed := conns.RemoveUnhealthyReplicas(checkCtx); removed > 0 {
				logger.WithField("removed", removed).Warn("Dropped unhealthy read replicas")
			}
			cancel()
		}
	}
}
