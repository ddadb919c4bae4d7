package registry

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidIdentifier is returned when a lookup names a table or column
// that is not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid sql identifier")

// Repository abstracts the gateway configuration store.
type Repository interface {
	FindRoute(ctx context.Context, path string) (*Route, error)
	ListRoutes(ctx context.Context) ([]*Route, error)
	GetDescriptor(ctx context.Context, apiCode string) (*Descriptor, error)
	ListParameters(ctx context.Context, apiCode string) ([]*ParameterSpec, error)
	ListBindings(ctx context.Context, apiCode, param string) ([]*RuleBinding, error)
	GetBusinessRule(ctx context.Context, id string) (*BusinessRule, error)
	ListBusinessRules(ctx context.Context) ([]*BusinessRule, error)
	ErrorMessage(ctx context.Context, code string) (string, error)
	ListSetters(ctx context.Context, handlerType string) ([]*SetterMapping, error)

	// Identity usage is mutable and never cached.
	GetIdentity(ctx context.Context, identity string) (*IdentityUsage, error)
	IncrementUsage(ctx context.Context, identity string) error

	// Exists reports whether any row matches q with the filter bound to value.
	Exists(ctx context.Context, q ExistsQuery, value any) (bool, error)

	Ping(ctx context.Context) error
}

var (
	schemaPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

// NormalizeSchema returns schema when it is a safe lowercase identifier and
// "public" otherwise.
func NormalizeSchema(schema string) string {
	if schema == "" || !schemaPattern.MatchString(schema) {
		return "public"
	}
	return schema
}

// ValidIdentifier reports whether s is a plain or schema-qualified identifier.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate checks every name in q.
func (q ExistsQuery) Validate() error {
	for _, s := range []string{q.Table, q.Column, q.FilterColumn} {
		if !ValidIdentifier(s) {
			return errors.Join(ErrInvalidIdentifier, errors.New(s))
		}
	}
	return nil
}
