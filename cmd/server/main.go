package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-auth-sessions/auth"
	"github.com/jrsteele09/go-auth-sessions/cache"
	"github.com/jrsteele09/go-auth-sessions/internal/config"
	"github.com/jrsteele09/go-auth-sessions/internal/database"
	"github.com/jrsteele09/go-auth-sessions/internal/logging"
	"github.com/jrsteele09/go-auth-sessions/internal/metrics"
	"github.com/jrsteele09/go-auth-sessions/server"
	"github.com/jrsteele09/go-auth-sessions/token"
	"github.com/jrsteele09/go-auth-sessions/token/refresh"
	refreshpgrepo "github.com/jrsteele09/go-auth-sessions/token/refresh/pgrepo"
	refreshrepofake "github.com/jrsteele09/go-auth-sessions/token/refresh/repofake"
	"github.com/jrsteele09/go-auth-sessions/users"
	userpgrepo "github.com/jrsteele09/go-auth-sessions/users/pgrepo"
	fakeuserrepo "github.com/jrsteele09/go-auth-sessions/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const memoryCacheCleanupInterval = time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.SetGlobal(logging.New(c.GetEnv(), c.GetAppName()))
	displayAppname(c.GetAppName())

	if err := initSentry(c); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.GetAccessTokenSecret() == "" || c.GetRefreshTokenSecret() == "" {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if c.GetAccessTokenSecret() == c.GetRefreshTokenSecret() {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sharedCache, healthChecks, err := openCache(ctx, c)
	if err != nil {
		return err
	}
	defer sharedCache.Close()

	userRepo, refreshRepo, closeStores, storeChecks, err := openStores(ctx, c)
	if err != nil {
		return err
	}
	defer closeStores()
	for name, check := range storeChecks {
		healthChecks[name] = check
	}

	tokens, err := token.New(refreshRepo, userRepo, token.NewBlacklist(sharedCache),
		token.NewHMACSigner(c.GetAccessTokenSecret()),
		token.NewHMACSigner(c.GetRefreshTokenSecret()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
		token.WithIssuer(c.GetTokenIssuer()),
		token.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	validatorOptions := []auth.ValidatorOption{auth.WithValidatorMetrics(m)}
	if c.GetRevokeSessionsOnLockout() {
		validatorOptions = append(validatorOptions, auth.WithLockoutRevoker(tokens))
	}
	throttle := auth.NewLoginThrottle(sharedCache, c.GetLoginMaxAttempts(), c.GetLoginLockoutWindow(), auth.WithThrottleMetrics(m))
	validator, err := auth.NewCredentialValidator(userRepo, throttle, validatorOptions...)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(validator, userRepo, tokens, auth.WithMetrics(m))
	if err != nil {
		return err
	}

	serverOptions := []server.ServerOption{server.WithGatherer(registry)}
	for name, check := range healthChecks {
		serverOptions = append(serverOptions, server.WithHealthCheck(name, check))
	}
	handler, err := server.New(c, authService, tokens, serverOptions...)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func initSentry(c config.Config) error {
	if c.GetSentryDSN() == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              c.GetSentryDSN(),
		Environment:      c.GetEnv(),
		AttachStacktrace: true,
	})
}

// openCache connects to Redis, or falls back to the process-local cache
// when REDIS_ADDR is unset.
func openCache(ctx context.Context, c config.Config) (cache.Cache, map[string]server.HealthCheck, error) {
	checks := make(map[string]server.HealthCheck)

	if c.GetRedisAddr() == "" {
		log.Warn().Msg("REDIS_ADDR not set, using in-memory cache: lockouts and blacklist are not shared between instances")
		memoryCache := cache.NewMemoryCache()
		go cleanupLoop(ctx, memoryCache)
		return memoryCache, checks, nil
	}

	redisCache, err := cache.NewRedisCache(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(),
		cache.WithOpTimeout(c.GetCacheOpTimeout()))
	if err != nil {
		return nil, nil, fmt.Errorf("cache.NewRedisCache: %w", err)
	}
	checks["redis"] = redisCache.Ping
	log.Info().Str("addr", c.GetRedisAddr()).Msg("connected to redis")
	return redisCache, checks, nil
}

func cleanupLoop(ctx context.Context, memoryCache *cache.MemoryCache) {
	ticker := time.NewTicker(memoryCacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memoryCache.Cleanup()
		}
	}
}

// openStores connects to Postgres, or falls back to in-memory repositories
// when DATABASE_URL is unset.
func openStores(ctx context.Context, c config.Config) (users.Directory, refresh.Repo, func(), map[string]server.HealthCheck, error) {
	checks := make(map[string]server.HealthCheck)

	if c.GetDatabaseURL() == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory user and refresh token stores")
		return fakeuserrepo.NewFakeUserRepo(), refreshrepofake.NewFakeRefreshTokenRepo(), func() {}, checks, nil
	}

	pool, err := database.NewPool(ctx, c.GetDatabaseURL(), c.GetDBMaxConns())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("database.NewPool: %w", err)
	}
	if c.GetRunMigrations() {
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("database.RunMigrations: %w", err)
		}
	}
	checks["postgres"] = func(ctx context.Context) error {
		return database.Ping(ctx, pool, time.Second)
	}

	return userpgrepo.New(pool), refreshpgrepo.New(pool), closePool(pool), checks, nil
}

func closePool(pool *pgxpool.Pool) func() {
	return func() {
		pool.Close()
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
