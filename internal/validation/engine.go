// Package validation runs the per-request validation cycle: identity gate,
// mandatory parameters, then every rule bound to each supplied parameter.
// The cycle stops at the first failure.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/rules"
	"github.com/waploaj/DyAPI/internal/status"
)

// Store is the slice of the configuration store the engine reads.
type Store interface {
	ListParameters(ctx context.Context, apiCode string) ([]*registry.ParameterSpec, error)
	ListBindings(ctx context.Context, apiCode, param string) ([]*registry.RuleBinding, error)
	GetBusinessRule(ctx context.Context, id string) (*registry.BusinessRule, error)
	GetIdentity(ctx context.Context, identity string) (*registry.IdentityUsage, error)
	IncrementUsage(ctx context.Context, identity string) error
}

// Evaluator applies a parsed business rule.
type Evaluator interface {
	Evaluate(ctx context.Context, rule *rules.Rule, value any) (bool, error)
}

// Engine validates request parameters against the bindings stored for an
// API. It is safe for concurrent use; all per-request state lives in the
// returned status context.
type Engine struct {
	store         Store
	catalog       status.Catalog
	identityParam string
	classes       map[Class]ClassValidator
	parsed        *rules.Cache
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIdentityParam sets the parameter carrying the caller identity.
func WithIdentityParam(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.identityParam = name
		}
	}
}

// WithClass replaces the validator used for a rule class.
func WithClass(class Class, v ClassValidator) Option {
	return func(e *Engine) { e.classes[class] = v }
}

// WithRuleCache shares a parsed-rule cache, typically one preloaded at
// startup.
func WithRuleCache(c *rules.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.parsed = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine reading bindings from store. The identity
// parameter defaults to user_id and the data_type and common classes to the
// built-in registries.
func NewEngine(store Store, evaluator Evaluator, catalog status.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		catalog:       catalog,
		identityParam: "user_id",
		parsed:        rules.NewCache(),
		logger:        slog.Default(),
		classes: map[Class]ClassValidator{
			ClassDataType: NewDataTypeClass(),
			ClassCommon:   NewCommonClass(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, ok := e.classes[ClassBusiness]; !ok {
		e.classes[ClassBusiness] = &businessClass{store: store, evaluator: evaluator, parsed: e.parsed}
	}
	return e
}

// IdentityParam returns the configured identity parameter name.
func (e *Engine) IdentityParam() string { return e.identityParam }

// Validate runs one cycle for desc and returns its fresh status context.
func (e *Engine) Validate(ctx context.Context, desc *registry.Descriptor, params map[string]any) *status.Context {
	sc := status.New(e.catalog)
	if err := e.run(ctx, desc, params); err != nil {
		sc.Fail(ctx, err)
	}
	return sc
}

func (e *Engine) run(ctx context.Context, desc *registry.Descriptor, params map[string]any) error {
	if err := e.gate(ctx, params); err != nil {
		return err
	}
	if desc.AcceptsBody {
		if err := e.mandatory(ctx, desc.APICode, params); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.param(ctx, desc.APICode, name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

// gate admits a known, unblocked identity and counts the request.
func (e *Engine) gate(ctx context.Context, params map[string]any) error {
	raw, ok := params[e.identityParam]
	if !ok || raw == nil {
		return status.NewError(status.KindIdentityInvalid, status.CodeIdentityMissing, e.identityParam)
	}
	identity := identityText(raw)
	if identity == "" {
		return status.NewError(status.KindIdentityInvalid, status.CodeIdentityMissing, e.identityParam)
	}

	usage, err := e.store.GetIdentity(ctx, identity)
	if errors.Is(err, registry.ErrNotFound) {
		return status.NewError(status.KindIdentityInvalid, status.CodeIdentityUnknown, identity)
	}
	if err != nil {
		return status.Wrap(status.KindInternal, status.CodeInternal, "load identity", err)
	}
	if strings.EqualFold(strings.TrimSpace(usage.Status), "blocked") || usage.BlockDate != nil {
		return status.NewError(status.KindIdentityInvalid, status.CodeIdentityBlocked, identity)
	}
	if err := e.store.IncrementUsage(ctx, identity); err != nil {
		return status.Wrap(status.KindInternal, status.CodeIdentityUpdate, identity, err)
	}
	e.logger.DebugContext(ctx, "identity admitted", "identity", identity, "requests", usage.RequestCount+1)
	return nil
}

// identityText renders an identity parameter as it is stored. Numbers are
// written in plain decimal so 12345678 does not become 1.2345678e+07.
func identityText(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (e *Engine) mandatory(ctx context.Context, apiCode string, params map[string]any) error {
	specs, err := e.store.ListParameters(ctx, apiCode)
	if err != nil {
		return status.Wrap(status.KindInternal, status.CodeInternal, "load parameters", err)
	}
	for _, spec := range specs {
		if !spec.Mandatory {
			continue
		}
		if v, ok := params[spec.Name]; !ok || v == nil {
			return status.NewError(status.KindParameterMissing, status.CodeParameterMissing, spec.Name)
		}
	}
	return nil
}

func (e *Engine) param(ctx context.Context, apiCode, name string, value any) error {
	bindings, err := e.store.ListBindings(ctx, apiCode, name)
	if err != nil {
		return status.Wrap(status.KindInternal, status.CodeInternal, "load bindings", err)
	}
	for _, b := range bindings {
		class, ref, err := classify(b)
		if err != nil {
			return err
		}
		v, ok := e.classes[class]
		if !ok {
			return status.NewError(status.KindRuleConfig, status.CodeRuleConfig, fmt.Sprintf("no validator for class %s", class))
		}
		if err := v.Validate(ctx, name, ref, value); err != nil {
			return err
		}
	}
	return nil
}

// classify picks the single rule class a binding references.
func classify(b *registry.RuleBinding) (Class, string, error) {
	var class Class
	var ref string
	set := 0
	for _, c := range []struct {
		class Class
		ref   string
	}{
		{ClassBusiness, b.BusinessRuleID},
		{ClassDataType, b.DataTypeRule},
		{ClassCommon, b.CommonRule},
	} {
		if strings.TrimSpace(c.ref) == "" {
			continue
		}
		class, ref = c.class, strings.TrimSpace(c.ref)
		set++
	}
	switch set {
	case 0:
		return "", "", status.NewError(status.KindRuleConfig, status.CodeNoValidationType, b.ParamName)
	case 1:
		return class, ref, nil
	default:
		return "", "", status.NewError(status.KindRuleConfig, status.CodeRuleConfig,
			fmt.Sprintf("binding %d for %s references %d rule classes", b.ID, b.ParamName, set))
	}
}

type businessClass struct {
	store     Store
	evaluator Evaluator
	parsed    *rules.Cache
}

func (c *businessClass) Validate(ctx context.Context, param, ref string, value any) error {
	def, err := c.store.GetBusinessRule(ctx, ref)
	if errors.Is(err, registry.ErrNotFound) {
		return status.NewError(status.KindRuleConfig, status.CodeRuleNotFound, ref)
	}
	if err != nil {
		return status.Wrap(status.KindInternal, status.CodeInternal, "load business rule "+ref, err)
	}
	rule, err := c.parsed.Get(*def)
	if err != nil {
		return err
	}
	ok, err := c.evaluator.Evaluate(ctx, rule, value)
	if err != nil {
		return err
	}
	if !ok {
		return failed(param, rule.Description)
	}
	return nil
}
