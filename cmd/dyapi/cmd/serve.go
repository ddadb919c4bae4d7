package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/waploaj/DyAPI/internal/admin"
	"github.com/waploaj/DyAPI/internal/app"
	"github.com/waploaj/DyAPI/internal/dispatch"
	"github.com/waploaj/DyAPI/internal/grpcjson"
	"github.com/waploaj/DyAPI/internal/health"
	"github.com/waploaj/DyAPI/internal/migrate"
	"github.com/waploaj/DyAPI/internal/proxy"
	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/rules"
)

var (
	skipMigrate  bool
	fixturesFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the gateway HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	serveCmd.Flags().StringVar(&fixturesFile, "fixtures", "", "serve configuration from a YAML file instead of Postgres")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fixturesFile != "" {
		cfg.FixturesFile = fixturesFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var (
		store  registry.Repository
		probes []health.Probe
	)
	if cfg.FixturesFile != "" {
		mem, err := registry.LoadFixturesFile(cfg.FixturesFile)
		if err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
		store = mem
		log.Warn("serving configuration from fixtures, identity counters are not persisted", "file", cfg.FixturesFile)
	} else {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		schema := registry.NormalizeSchema(cfg.Schema)
		if !skipMigrate {
			if err := migrate.Run(ctx, db, schema); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		store = registry.NewSQLRepository(db, schema)
		probes = append(probes, health.Probe{Name: "postgres", Critical: true, Check: db.PingContext})
	}

	parsed, err := preloadRules(ctx, store)
	if err != nil {
		return err
	}

	var cache admin.Flusher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		caching := registry.NewCachingRepository(store, rdb, cfg.CacheTTL, cfg.CachePrefix)
		store, cache = caching, caching
		probes = append(probes, health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info("configuration cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	handlers, upstreamProbes, err := registerUpstreams()
	if err != nil {
		return err
	}
	probes = append(probes, upstreamProbes...)

	checker := health.NewChecker(log, probes...)
	checker.Start(ctx, cfg.HealthInterval())

	srv, err := app.NewServer(app.Options{
		Port:           cfg.Port,
		Store:          store,
		Cache:          cache,
		Handlers:       handlers,
		Health:         checker,
		Logger:         log,
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		APIPrefix:      cfg.APIPrefix,
		VersionSegment: cfg.VersionSegment,
		IdentityParam:  cfg.IdentityParam,
		GRPCUpstreams:  cfg.GRPCUpstreams,
		Rules:          parsed,
	})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, admin endpoints are unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", srv.Addr, "handler_types", handlers.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// preloadRules parses every stored business rule so malformed rows stop
// startup instead of failing the first request that reaches them.
func preloadRules(ctx context.Context, src rules.Lister) (*rules.Cache, error) {
	parsed := rules.NewCache()
	n, err := parsed.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("business rules: %w", err)
	}
	log.Info("business rules loaded", "count", n)
	return parsed, nil
}

// registerUpstreams turns each configured upstream into a handler type.
func registerUpstreams() (*dispatch.Registry, []health.Probe, error) {
	handlers := dispatch.NewRegistry()
	var probes []health.Probe
	for name, target := range cfg.GRPCUpstreams {
		if err := handlers.Register(name, grpcjson.Factory(target)); err != nil {
			return nil, nil, fmt.Errorf("register grpc upstream %s: %w", name, err)
		}
		log.Info("grpc upstream registered", "handler_type", name, "target", target)
	}
	for name, base := range cfg.HTTPUpstreams {
		f, err := proxy.Factory(base, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("http upstream %s: %w", name, err)
		}
		if err := handlers.Register(name, f); err != nil {
			return nil, nil, fmt.Errorf("register http upstream %s: %w", name, err)
		}
		probes = append(probes, health.Probe{Name: "upstream:" + name, Check: health.HTTPProbe(base, nil)})
		log.Info("http upstream registered", "handler_type", name, "base_url", base)
	}
	return handlers, probes, nil
}
