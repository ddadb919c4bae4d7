package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/waploaj/DyAPI/internal/status"
)

// Class names a rule family a binding can reference.
type Class string

const (
	ClassBusiness Class = "business"
	ClassDataType Class = "data_type"
	ClassCommon   Class = "common"
)

// ClassValidator checks value against the rule referenced by ref. A plain
// validation failure is returned as status.KindValidationFailed; anything
// else aborts the cycle with its own kind.
type ClassValidator interface {
	Validate(ctx context.Context, param, ref string, value any) error
}

// CheckFunc is a named check registered on a class.
type CheckFunc func(value any) bool

func failed(param, reason string) error {
	return status.NewError(status.KindValidationFailed, status.CodeValidationFailed, param+" - "+reason)
}

func unknownRef(class Class, ref string) error {
	return status.NewError(status.KindRuleConfig, status.CodeRuleConfig, fmt.Sprintf("unknown %s rule %q", class, ref))
}

// DataTypeClass resolves named checks first and otherwise treats ref as a
// go-playground/validator tag expression such as "numeric" or "max=20".
type DataTypeClass struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	validate *validator.Validate
}

func NewDataTypeClass() *DataTypeClass {
	return &DataTypeClass{checks: map[string]CheckFunc{}, validate: validator.New()}
}

// Register adds or replaces a named data-type check.
func (d *DataTypeClass) Register(name string, fn CheckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checks[name] = fn
}

func (d *DataTypeClass) Validate(_ context.Context, param, ref string, value any) error {
	d.mu.RLock()
	fn, ok := d.checks[ref]
	d.mu.RUnlock()
	if ok {
		if !fn(value) {
			return failed(param, ref)
		}
		return nil
	}
	return d.tag(param, ref, value)
}

// tag runs ref as a validator tag. The validator panics on tags it cannot
// parse, which is reported as a rule configuration error.
func (d *DataTypeClass) tag(param, ref string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.NewError(status.KindRuleConfig, status.CodeRuleConfig, fmt.Sprintf("invalid data type rule %q: %v", ref, r))
		}
	}()
	if verr := d.validate.Var(value, ref); verr != nil {
		var ve validator.ValidationErrors
		if errors.As(verr, &ve) {
			return failed(param, ref)
		}
		return status.Wrap(status.KindRuleConfig, status.CodeRuleConfig, fmt.Sprintf("data type rule %q", ref), verr)
	}
	return nil
}

// sqlMeta matches the characters and keywords screened by no_sql_meta.
var sqlMeta = regexp.MustCompile(`(?i)('|--|;|/\*|\*/|\b(select|insert|update|delete|drop|union|alter|exec)\b)`)

// CommonClass holds cross-cutting checks such as not_blank.
type CommonClass struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewCommonClass returns a class with the built-in not_blank, trimmed and
// no_sql_meta checks.
func NewCommonClass() *CommonClass {
	c := &CommonClass{checks: map[string]CheckFunc{}}
	c.Register("not_blank", func(v any) bool {
		if v == nil {
			return false
		}
		s, ok := v.(string)
		return !ok || strings.TrimSpace(s) != ""
	})
	c.Register("trimmed", func(v any) bool {
		s, ok := v.(string)
		return !ok || s == strings.TrimSpace(s)
	})
	c.Register("no_sql_meta", func(v any) bool {
		s, ok := v.(string)
		return !ok || !sqlMeta.MatchString(s)
	})
	return c
}

func (c *CommonClass) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

func (c *CommonClass) Validate(_ context.Context, param, ref string, value any) error {
	c.mu.RLock()
	fn, ok := c.checks[ref]
	c.mu.RUnlock()
	if !ok {
		return unknownRef(ClassCommon, ref)
	}
	if !fn(value) {
		return failed(param, ref)
	}
	return nil
}
