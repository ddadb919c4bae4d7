package status

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindRouteNotFound
	KindConfigNotFound
	KindPayloadInvalid
	KindIdentityInvalid
	KindParameterMissing
	KindValidationFailed
	// KindRuleConfig marks a malformed rule row or binding. It is an operator
	// problem, never a caller problem.
	KindRuleConfig
	KindDispatch
)

var kindNames = map[Kind]string{
	KindInternal:         "internal",
	KindRouteNotFound:    "route_not_found",
	KindConfigNotFound:   "config_not_found",
	KindPayloadInvalid:   "payload_invalid",
	KindIdentityInvalid:  "identity_invalid",
	KindParameterMissing: "parameter_missing",
	KindValidationFailed: "validation_failed",
	KindRuleConfig:       "rule_config",
	KindDispatch:         "dispatch",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus maps the kind to the status code written to the caller.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindConfigNotFound, KindPayloadInvalid, KindIdentityInvalid, KindParameterMissing, KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Internal reports whether details of this kind must stay out of responses.
func (k Kind) Internal() bool {
	return k.HTTPStatus() == http.StatusInternalServerError
}

// Error is a classified pipeline failure carrying a catalog code.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Err    error
}

// NewError returns an Error without an underlying cause.
func NewError(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Wrap returns an Error that wraps cause.
func Wrap(kind Kind, code, detail string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code == e.Code
}

// As extracts an *Error from err. Unclassified errors become KindInternal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Wrap(KindInternal, CodeInternal, "", err)
}

// Sentinels for errors.Is checks.
var (
	ErrRouteNotFound    = NewError(KindRouteNotFound, CodeRouteNotFound, "")
	ErrConfigNotFound   = NewError(KindConfigNotFound, CodeConfigNotFound, "")
	ErrPayloadInvalid   = NewError(KindPayloadInvalid, CodePayloadInvalid, "")
	ErrIdentityMissing  = NewError(KindIdentityInvalid, CodeIdentityMissing, "")
	ErrIdentityUnknown  = NewError(KindIdentityInvalid, CodeIdentityUnknown, "")
	ErrIdentityBlocked  = NewError(KindIdentityInvalid, CodeIdentityBlocked, "")
	ErrParameterMissing = NewError(KindParameterMissing, CodeParameterMissing, "")
	ErrValidationFailed = NewError(KindValidationFailed, CodeValidationFailed, "")
	ErrNoValidationType = NewError(KindRuleConfig, CodeNoValidationType, "")
	ErrRuleConfig       = NewError(KindRuleConfig, CodeRuleConfig, "")
	ErrRuleNotFound     = NewError(KindRuleConfig, CodeRuleNotFound, "")
	ErrDispatch         = NewError(KindDispatch, CodeDispatch, "")
	ErrIdentityUpdate   = NewError(KindInternal, CodeIdentityUpdate, "")
	ErrInternal         = NewError(KindInternal, CodeInternal, "")
)
