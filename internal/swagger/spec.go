// Package swagger publishes the gateway's OpenAPI 3 document, built from the
// configured routes, and the Swagger UI that renders it.
package swagger

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/util"
)

// Source lists the configuration the document is built from.
type Source interface {
	ListRoutes(ctx context.Context) ([]*registry.Route, error)
	GetDescriptor(ctx context.Context, apiCode string) (*registry.Descriptor, error)
	ListParameters(ctx context.Context, apiCode string) ([]*registry.ParameterSpec, error)
}

// API is one documented gateway operation.
type API struct {
	Route      registry.Route
	Descriptor registry.Descriptor
	Params     []*registry.ParameterSpec
}

// Options describe where the gateway is served.
type Options struct {
	Title     string
	Version   string
	ServerURL string
	BasePath  string // e.g. "/api/v1"
}

func envelope() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("SUCCESS", "ERROR")).
		WithProperty("message", openapi3.NewStringSchema())
}

func errResponse(desc string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc).WithJSONSchema(envelope())}
}

func gatewayResponses() *openapi3.Responses {
	return openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Handler response")}),
		openapi3.WithStatus(400, errResponse("Validation or resolution failure")),
		openapi3.WithStatus(404, errResponse("Route is not registered")),
		openapi3.WithStatus(500, errResponse("Internal or dispatch failure")),
	)
}

func okResponses(desc string) *openapi3.Responses {
	return openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc)}),
	)
}

func operation(id, summary, tag string, resp *openapi3.Responses) *openapi3.Operation {
	return &openapi3.Operation{OperationID: id, Summary: summary, Tags: []string{tag}, Responses: resp}
}

// Build assembles the document for apis plus the system and admin endpoints.
func Build(opts Options, apis []API) *openapi3.T {
	if opts.Title == "" {
		opts.Title = "DyAPI Gateway"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	paths := openapi3.NewPaths(
		openapi3.WithPath("/healthz", &openapi3.PathItem{Get: operation("healthz", "Liveness probe", "system", okResponses("OK"))}),
		openapi3.WithPath("/readyz", &openapi3.PathItem{Get: operation("readyz", "Readiness probe", "system", okResponses("Ready"))}),
		openapi3.WithPath("/admin/routes", &openapi3.PathItem{Get: operation("adminListRoutes", "List configured routes", "admin", okResponses("Routes"))}),
		openapi3.WithPath("/admin/apis/{code}", &openapi3.PathItem{
			Get: operation("adminGetAPI", "Show one API with parameters and rule bindings", "admin", okResponses("API")),
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{Value: openapi3.NewPathParameter("code").WithSchema(openapi3.NewStringSchema())},
			},
		}),
		openapi3.WithPath("/admin/cache/flush", &openapi3.PathItem{Post: operation("adminFlushCache", "Flush the configuration cache", "admin", okResponses("Flushed"))}),
	)

	base := strings.TrimRight("/"+strings.Trim(opts.BasePath, "/"), "/")
	for i, api := range apis {
		id := fmt.Sprintf("api_%s_%d", api.Descriptor.APICode, i)
		op := operation(id, api.Descriptor.HandlerType+"."+api.Descriptor.HandlerMethod, "gateway", gatewayResponses())
		item := &openapi3.PathItem{}
		if api.Descriptor.AcceptsBody {
			body := openapi3.NewObjectSchema()
			var required []string
			for _, p := range api.Params {
				body = body.WithProperty(p.Name, &openapi3.Schema{})
				if p.Mandatory {
					required = append(required, p.Name)
				}
			}
			body.Required = required
			op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body)}
			item.Post = op
		} else {
			for _, p := range api.Params {
				param := openapi3.NewQueryParameter(p.Name).WithSchema(openapi3.NewStringSchema())
				op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: param})
			}
			item.Get = op
		}
		paths.Set(base+"/"+strings.Trim(api.Route.Path, "/"), item)
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: opts.Title, Version: opts.Version, Description: "Configuration-driven gateway endpoints."},
		Paths:   paths,
	}
	if opts.ServerURL != "" {
		doc.Servers = openapi3.Servers{&openapi3.Server{URL: opts.ServerURL}}
	}
	return doc
}

// Collect loads every route with a descriptor. Routes whose descriptor is
// missing are skipped.
func Collect(ctx context.Context, src Source) ([]API, error) {
	routes, err := src.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}
	apis := make([]API, 0, len(routes))
	for _, rt := range routes {
		d, err := src.GetDescriptor(ctx, rt.APICode)
		if err != nil {
			continue
		}
		params, err := src.ListParameters(ctx, rt.APICode)
		if err != nil {
			return nil, err
		}
		apis = append(apis, API{Route: *rt, Descriptor: *d, Params: params})
	}
	return apis, nil
}

// SpecHandler serves the document as JSON, rebuilt on each request.
func SpecHandler(src Source, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apis, err := Collect(r.Context(), src)
		if err != nil {
			util.Error(w, http.StatusInternalServerError, "could not load routes")
			return
		}
		util.JSON(w, Build(opts, apis))
	}
}

// UIHandler serves Swagger UI wired to /swagger.json.
func UIHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/swagger.json"))
}
