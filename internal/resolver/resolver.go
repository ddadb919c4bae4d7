// Package resolver maps request paths to API codes and API codes to their
// handler descriptors.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/status"
)

// DefaultVersionSegment marks where the route key starts in a request path.
const DefaultVersionSegment = "/v1/"

// Store is the configuration lookup the resolver needs.
type Store interface {
	FindRoute(ctx context.Context, path string) (*registry.Route, error)
	GetDescriptor(ctx context.Context, apiCode string) (*registry.Descriptor, error)
}

type Resolver struct {
	store   Store
	segment string
}

func New(store Store, versionSegment string) *Resolver {
	if versionSegment == "" {
		versionSegment = DefaultVersionSegment
	}
	return &Resolver{store: store, segment: versionSegment}
}

// StripVersion returns the part of path after the first case-insensitive
// occurrence of segment, without a trailing slash.
func StripVersion(path, segment string) (string, bool) {
	i := strings.Index(strings.ToLower(path), strings.ToLower(segment))
	if i < 0 {
		return "", false
	}
	key := strings.TrimSuffix(path[i+len(segment):], "/")
	return key, key != ""
}

// ResolveAPI returns the API code registered for path.
func (r *Resolver) ResolveAPI(ctx context.Context, path string) (string, error) {
	key, ok := StripVersion(path, r.segment)
	if !ok {
		return "", status.NewError(status.KindRouteNotFound, status.CodeRouteNotFound, path)
	}
	rt, err := r.store.FindRoute(ctx, key)
	if errors.Is(err, registry.ErrNotFound) {
		return "", status.NewError(status.KindRouteNotFound, status.CodeRouteNotFound, key)
	}
	if err != nil {
		return "", status.Wrap(status.KindInternal, status.CodeInternal, "find route", err)
	}
	return rt.APICode, nil
}

// ResolveDescriptor returns the handler descriptor for apiCode.
func (r *Resolver) ResolveDescriptor(ctx context.Context, apiCode string) (*registry.Descriptor, error) {
	d, err := r.store.GetDescriptor(ctx, apiCode)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, status.NewError(status.KindConfigNotFound, status.CodeConfigNotFound, apiCode)
	}
	if err != nil {
		return nil, status.Wrap(status.KindInternal, status.CodeInternal, "get descriptor", err)
	}
	return d, nil
}

// Resolve runs both steps.
func (r *Resolver) Resolve(ctx context.Context, path string) (*registry.Descriptor, error) {
	code, err := r.ResolveAPI(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.ResolveDescriptor(ctx, code)
}
