// Package app wires the gateway pipeline and the operational endpoints into
// one HTTP server.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/waploaj/DyAPI/internal/admin"
	"github.com/waploaj/DyAPI/internal/dispatch"
	"github.com/waploaj/DyAPI/internal/health"
	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/resolver"
	"github.com/waploaj/DyAPI/internal/rules"
	"github.com/waploaj/DyAPI/internal/status"
	"github.com/waploaj/DyAPI/internal/swagger"
	"github.com/waploaj/DyAPI/internal/util"
	"github.com/waploaj/DyAPI/internal/validation"
)

type Options struct {
	Port     string
	Store    registry.Repository
	Cache    admin.Flusher
	Handlers *dispatch.Registry
	Health   *health.Checker
	Logger   *slog.Logger

	JWTSecret      string
	RequestTimeout time.Duration
	APIPrefix      string
	VersionSegment string
	IdentityParam  string
	GRPCUpstreams  map[string]string

	// Rules is the parsed business rule cache, usually preloaded at startup.
	Rules *rules.Cache

	// Extra validator classes, keyed by class name.
	Classes map[validation.Class]validation.ClassValidator
}

// NewRouter builds the gateway handler tree.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Handlers == nil {
		opts.Handlers = dispatch.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = health.NewChecker(opts.Logger, health.Probe{Name: "store", Critical: true, Check: opts.Store.Ping})
	}
	if opts.VersionSegment == "" {
		opts.VersionSegment = resolver.DefaultVersionSegment
	}
	if opts.Rules == nil {
		opts.Rules = rules.NewCache()
	}
	prefix := strings.TrimRight(opts.APIPrefix, "/")

	catalog := status.NewCatalog(opts.Store)
	engineOpts := []validation.Option{
		validation.WithIdentityParam(opts.IdentityParam),
		validation.WithLogger(opts.Logger),
		validation.WithRuleCache(opts.Rules),
	}
	for class, v := range opts.Classes {
		engineOpts = append(engineOpts, validation.WithClass(class, v))
	}
	gw := &Gateway{
		resolver:   resolver.New(opts.Store, opts.VersionSegment),
		engine:     validation.NewEngine(opts.Store, rules.NewEvaluator(opts.Store, opts.Logger), catalog, engineOpts...),
		dispatcher: dispatch.New(opts.Handlers, opts.Store, opts.Logger),
		catalog:    catalog,
		logger:     opts.Logger,
	}

	adminOpts := []admin.Option{
		admin.WithHandlerTypes(opts.Handlers.Names),
		admin.WithGRPCUpstreams(opts.GRPCUpstreams, nil),
		admin.WithCache(flushAll{cache: opts.Cache, rules: opts.Rules}),
	}
	adm := admin.NewHandler(opts.Store, adminOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RealIP, util.RequestID(), util.AccessLog(opts.Logger), middleware.Recoverer, util.CORS())

	r.Get("/healthz", health.Live)
	r.Get("/readyz", opts.Health.Ready)
	r.Get("/swagger.json", swagger.SpecHandler(opts.Store, swagger.Options{
		Title:    "DyAPI Gateway",
		Version:  "1.0",
		BasePath: prefix + strings.TrimRight(opts.VersionSegment, "/"),
	}))
	r.Get("/swagger/*", swagger.UIHandler())

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(util.JWTAuth(opts.JWTSecret))
		adm.Routes(ar)
	})

	api := r.With()
	if opts.RequestTimeout > 0 {
		api = r.With(middleware.Timeout(opts.RequestTimeout))
	}
	api.Handle(prefix+"/*", gw)
	return r, nil
}

// flushAll drops the parsed rules and, when configured, the store cache.
type flushAll struct {
	cache admin.Flusher
	rules *rules.Cache
}

func (f flushAll) Flush(ctx context.Context) (int, error) {
	n := f.rules.Reset()
	if f.cache == nil {
		return n, nil
	}
	m, err := f.cache.Flush(ctx)
	return n + m, err
}

// NewServer returns an http.Server serving NewRouter on opts.Port.
func NewServer(opts Options) (*http.Server, error) {
	h, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	port := opts.Port
	if port == "" {
		port = "8080"
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
