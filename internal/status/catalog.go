package status

import (
	"context"
	"strings"
)

// Catalog codes. Messages are looked up in the error catalog table and fall
// back to the defaults below when a row is missing.
const (
	CodeRouteNotFound    = "ERR_ROUTE_NOT_FOUND"
	CodeConfigNotFound   = "ERR_API_CONFIG_NOT_FOUND"
	CodePayloadInvalid   = "ERR_PAYLOAD_INVALID"
	CodeIdentityMissing  = "ERR_IDENTITY_MISSING"
	CodeIdentityUnknown  = "ERR_IDENTITY_UNKNOWN"
	CodeIdentityBlocked  = "ERR_IDENTITY_BLOCKED"
	CodeIdentityUpdate   = "ERR_IDENTITY_UPDATE"
	CodeParameterMissing = "ERR_PARAMETER_MISSING"
	CodeValidationFailed = "ERR_VALIDATION_FAILED"
	CodeNoValidationType = "ERR_NO_VALIDATION_TYPE"
	CodeRuleConfig       = "ERR_RULE_CONFIG"
	CodeRuleNotFound     = "ERR_RULE_NOT_FOUND"
	CodeDispatch         = "ERR_DISPATCH"
	CodeInternal         = "ERR_INTERNAL"
)

var defaultMessages = map[string]string{
	CodeRouteNotFound:    "Requested API path is not registered",
	CodeConfigNotFound:   "API configuration not found",
	CodePayloadInvalid:   "Request payload could not be decoded",
	CodeIdentityMissing:  "Caller identity is required",
	CodeIdentityUnknown:  "Caller identity is not registered",
	CodeIdentityBlocked:  "Caller identity is blocked",
	CodeIdentityUpdate:   "Caller usage could not be recorded",
	CodeParameterMissing: "Mandatory parameter is missing",
	CodeValidationFailed: "Validation failed for parameter",
	CodeNoValidationType: "No validation type configured for parameter",
	CodeRuleConfig:       "Validation rule is misconfigured",
	CodeRuleNotFound:     "Validation rule not found",
	CodeDispatch:         "API handler could not be invoked",
	CodeInternal:         "Internal error while processing the request",
}

// DefaultMessage returns the built-in text for code.
func DefaultMessage(code string) string {
	if m, ok := defaultMessages[code]; ok {
		return m
	}
	return code
}

// Catalog resolves catalog codes to caller-facing messages.
type Catalog interface {
	Message(ctx context.Context, code string) string
}

// MessageSource is the store side of the catalog.
type MessageSource interface {
	ErrorMessage(ctx context.Context, code string) (string, error)
}

// StoreCatalog reads messages from a MessageSource, using the defaults for
// codes the store does not know or cannot serve.
type StoreCatalog struct {
	src MessageSource
}

func NewCatalog(src MessageSource) *StoreCatalog {
	return &StoreCatalog{src: src}
}

func (c *StoreCatalog) Message(ctx context.Context, code string) string {
	if c == nil || c.src == nil {
		return DefaultMessage(code)
	}
	msg, err := c.src.ErrorMessage(ctx, code)
	if err != nil || strings.TrimSpace(msg) == "" {
		return DefaultMessage(code)
	}
	return msg
}

// StaticCatalog serves only the built-in messages.
type StaticCatalog struct{}

func (StaticCatalog) Message(_ context.Context, code string) string { return DefaultMessage(code) }
