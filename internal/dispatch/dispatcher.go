package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/status"
)

// SetterSource loads the parameter to field mapping of a handler type.
type SetterSource interface {
	ListSetters(ctx context.Context, handlerType string) ([]*registry.SetterMapping, error)
}

type Dispatcher struct {
	handlers *Registry
	setters  SetterSource
	logger   *slog.Logger
}

// New returns a Dispatcher. setters may be nil when no handler needs field
// mapping.
func New(handlers *Registry, setters SetterSource, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: handlers, setters: setters, logger: logger}
}

// Dispatch instantiates the handler of desc, applies the field mapping and
// invokes its method. Every failure, including a panic, is a dispatch error.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *registry.Descriptor, params map[string]any, w http.ResponseWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fail(desc, fmt.Errorf("handler panic: %v", r))
		}
		if err != nil {
			d.logger.ErrorContext(ctx, "dispatch failed",
				"api_code", desc.APICode,
				"handler_type", desc.HandlerType,
				"handler_method", desc.HandlerMethod,
				"error", err)
		}
	}()

	factory, ok := d.handlers.Lookup(desc.HandlerType)
	if !ok {
		return fail(desc, fmt.Errorf("unknown handler type %q", desc.HandlerType))
	}
	h, err := factory()
	if err != nil {
		return fail(desc, fmt.Errorf("create handler: %w", err))
	}
	if fs, ok := h.(FieldSetter); ok && d.setters != nil {
		if err := d.applySetters(ctx, desc.HandlerType, fs, params); err != nil {
			return fail(desc, err)
		}
	}
	if err := h.Invoke(ctx, desc.HandlerMethod, params, w); err != nil {
		return fail(desc, err)
	}
	return nil
}

func (d *Dispatcher) applySetters(ctx context.Context, handlerType string, fs FieldSetter, params map[string]any) error {
	mappings, err := d.setters.ListSetters(ctx, handlerType)
	if err != nil {
		return fmt.Errorf("load setters: %w", err)
	}
	for _, m := range mappings {
		v, ok := params[m.ParamName]
		if !ok {
			continue
		}
		if err := fs.SetField(m.FieldName, v); err != nil {
			return fmt.Errorf("set %s from %s: %w", m.FieldName, m.ParamName, err)
		}
	}
	return nil
}

func fail(desc *registry.Descriptor, err error) error {
	return status.Wrap(status.KindDispatch, status.CodeDispatch, desc.HandlerType+"."+desc.HandlerMethod, err)
}
