// Package admin exposes read-only views of the gateway configuration and
// cache maintenance endpoints.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waploaj/DyAPI/internal/grpcjson"
	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/util"
)

// Store is the configuration the admin API reads.
type Store interface {
	ListRoutes(ctx context.Context) ([]*registry.Route, error)
	GetDescriptor(ctx context.Context, apiCode string) (*registry.Descriptor, error)
	ListParameters(ctx context.Context, apiCode string) ([]*registry.ParameterSpec, error)
	ListBindings(ctx context.Context, apiCode, param string) ([]*registry.RuleBinding, error)
}

// Flusher drops cached configuration.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// DiscoverFunc lists the methods of a gRPC upstream.
type DiscoverFunc func(ctx context.Context, target string) ([]grpcjson.Method, error)

type Handler struct {
	store     Store
	cache     Flusher
	handlers  func() []string
	upstreams map[string]string
	discover  DiscoverFunc
}

type Option func(*Handler)

// WithCache enables POST /admin/cache/flush.
func WithCache(f Flusher) Option {
	return func(h *Handler) { h.cache = f }
}

// WithHandlerTypes lists the registered handler types on GET /admin/handlers.
func WithHandlerTypes(names func() []string) Option {
	return func(h *Handler) { h.handlers = names }
}

// WithGRPCUpstreams enables method discovery for the named gRPC targets.
func WithGRPCUpstreams(upstreams map[string]string, discover DiscoverFunc) Option {
	return func(h *Handler) {
		h.upstreams = upstreams
		if discover != nil {
			h.discover = discover
		}
	}
}

func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{store: store, discover: grpcjson.ListMethods, upstreams: map[string]string{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/routes", h.ListRoutes)
	r.Get("/apis/{code}", h.GetAPI)
	r.Get("/handlers", h.ListHandlers)
	r.Post("/cache/flush", h.FlushCache)
	r.Get("/upstreams/{name}/methods", h.DiscoverMethods)
}

// ListRoutes returns every configured route.
// @Summary List routes
// @Tags admin
// @Produce json
// @Success 200 {array} registry.Route
// @Security BearerAuth
// @Router /admin/routes [get]
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListRoutes(r.Context())
	if err != nil {
		util.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*registry.Route{}
	}
	util.JSON(w, list)
}

// GetAPI returns the descriptor, parameters and bindings of one API code.
// @Summary Get API configuration
// @Tags admin
// @Produce json
// @Param code path string true "API code"
// @Success 200 {object} admin.APIDetail
// @Failure 404 {string} string "not found"
// @Security BearerAuth
// @Router /admin/apis/{code} [get]
func (h *Handler) GetAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")
	desc, err := h.store.GetDescriptor(ctx, code)
	if errors.Is(err, registry.ErrNotFound) {
		util.Error(w, http.StatusNotFound, "api not found")
		return
	}
	if err != nil {
		util.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	params, err := h.store.ListParameters(ctx, code)
	if err != nil {
		util.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := APIDetail{Descriptor: desc, Parameters: make([]ParameterDetail, 0, len(params))}
	for _, p := range params {
		bindings, err := h.store.ListBindings(ctx, code, p.Name)
		if err != nil {
			util.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if bindings == nil {
			bindings = []*registry.RuleBinding{}
		}
		out.Parameters = append(out.Parameters, ParameterDetail{ParameterSpec: p, Bindings: bindings})
	}
	util.JSON(w, out)
}

func (h *Handler) ListHandlers(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	if h.handlers != nil {
		names = h.handlers()
	}
	util.JSON(w, names)
}

// FlushCache drops every cached configuration entry.
// @Summary Flush configuration cache
// @Tags admin
// @Produce json
// @Success 200 {object} admin.FlushResponse
// @Security BearerAuth
// @Router /admin/cache/flush [post]
func (h *Handler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		util.JSON(w, FlushResponse{})
		return
	}
	n, err := h.cache.Flush(r.Context())
	if err != nil {
		util.Error(w, http.StatusBadGateway, "flush failed: "+err.Error())
		return
	}
	util.JSON(w, FlushResponse{Flushed: n})
}

// DiscoverMethods lists the unary methods of a configured gRPC upstream via
// server reflection.
func (h *Handler) DiscoverMethods(w http.ResponseWriter, r *http.Request) {
	target, ok := h.upstreams[chi.URLParam(r, "name")]
	if !ok {
		util.Error(w, http.StatusNotFound, "unknown upstream")
		return
	}
	methods, err := h.discover(r.Context(), target)
	if err != nil {
		util.Error(w, http.StatusBadGateway, "discovery failed: "+err.Error())
		return
	}
	if methods == nil {
		methods = []grpcjson.Method{}
	}
	util.JSON(w, methods)
}
