package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/waploaj/DyAPI/internal/dispatch"
	"github.com/waploaj/DyAPI/internal/resolver"
	"github.com/waploaj/DyAPI/internal/status"
	"github.com/waploaj/DyAPI/internal/util"
	"github.com/waploaj/DyAPI/internal/validation"
)

// Gateway runs resolve, validate and dispatch for every inbound request.
type Gateway struct {
	resolver   *resolver.Resolver
	engine     *validation.Engine
	dispatcher *dispatch.Dispatcher
	catalog    status.Catalog
	logger     *slog.Logger
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	desc, err := g.resolver.Resolve(ctx, r.URL.Path)
	if err != nil {
		g.fail(ctx, w, err)
		return
	}
	params, err := ExtractParams(w, r)
	if err != nil {
		g.fail(ctx, w, err)
		return
	}
	if sc := g.engine.Validate(ctx, desc, params); sc.Failed() {
		g.write(ctx, w, sc)
		return
	}

	rec := util.NewStatusRecorder(w)
	if err := g.dispatcher.Dispatch(ctx, desc, params, rec); err != nil {
		if rec.Written {
			return
		}
		g.fail(ctx, w, err)
	}
}

func (g *Gateway) fail(ctx context.Context, w http.ResponseWriter, err error) {
	sc := status.New(g.catalog)
	sc.Fail(ctx, err)
	g.write(ctx, w, sc)
}

func (g *Gateway) write(ctx context.Context, w http.ResponseWriter, sc *status.Context) {
	e := sc.Err()
	if e.Kind.Internal() {
		g.logger.ErrorContext(ctx, "request failed", "kind", e.Kind.String(), "code", e.Code, "error", e.Error())
	} else {
		g.logger.InfoContext(ctx, "request rejected", "kind", e.Kind.String(), "code", e.Code, "message", sc.Message())
	}
	util.JSONStatus(w, sc.HTTPStatus(), sc.Response(ctx))
}
