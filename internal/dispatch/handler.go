// Package dispatch invokes the handler configured for an API once its
// parameters have passed validation.
package dispatch

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"sort"
	"sync"
)

// Handler executes one business operation and writes its result to w.
type Handler interface {
	Invoke(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error
}

// FieldSetter is implemented by handlers that accept mapped parameters
// before Invoke.
type FieldSetter interface {
	SetField(field string, value any) error
}

// Factory builds a fresh handler instance for one request.
type Factory func() (Handler, error)

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error

func (f HandlerFunc) Invoke(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error {
	return f(ctx, method, params, w)
}

// MethodFunc is one operation of a Methods handler.
type MethodFunc func(ctx context.Context, params map[string]any, w http.ResponseWriter) error

// Methods is a Handler with a fixed set of named operations.
type Methods map[string]MethodFunc

func (m Methods) Invoke(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error {
	fn, ok := m[method]
	if !ok {
		return fmt.Errorf("unknown method %q", method)
	}
	return fn(ctx, params, w)
}

// Fields collects SetField calls. Embed it to make a handler a FieldSetter.
type Fields struct {
	values map[string]any
}

func (f *Fields) SetField(field string, value any) error {
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	if f.values == nil {
		f.values = map[string]any{}
	}
	f.values[field] = value
	return nil
}

// Payload returns the mapped fields when any were set and a copy of params
// otherwise.
func (f *Fields) Payload(params map[string]any) map[string]any {
	if len(f.values) > 0 {
		return maps.Clone(f.values)
	}
	return maps.Clone(params)
}

// Registry maps handler types to factories. It is filled at startup and
// read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory. Registering a type twice is an error.
func (r *Registry) Register(handlerType string, f Factory) error {
	if handlerType == "" || f == nil {
		return fmt.Errorf("handler type and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[handlerType]; ok {
		return fmt.Errorf("handler type %q already registered", handlerType)
	}
	r.factories[handlerType] = f
	return nil
}

func (r *Registry) Lookup(handlerType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[handlerType]
	return f, ok
}

// Names returns the registered handler types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
