// Package status carries the outcome of one validation-and-dispatch cycle.
//
// A Context is created per request and never shared. The first failure
// recorded wins; later failures are ignored so every stage can check
// Failed and stop advancing.
package status

import "context"

// State is the wire value of a cycle outcome.
type State string

const (
	StateSuccess State = "SUCCESS"
	StateError   State = "ERROR"
)

const successMessage = "No errors found."

// Response is the JSON body written to callers.
type Response struct {
	Status  State  `json:"status"`
	Message string `json:"message"`
}

// Context is the per-cycle status holder.
type Context struct {
	catalog Catalog
	state   State
	message string
	err     *Error
}

// New returns a Context in the success state. A nil catalog falls back to
// the built-in messages.
func New(catalog Catalog) *Context {
	if catalog == nil {
		catalog = StaticCatalog{}
	}
	c := &Context{catalog: catalog}
	c.Reset()
	return c
}

// Reset puts the context back into the success state.
func (c *Context) Reset() {
	c.state = StateSuccess
	c.message = successMessage
	c.err = nil
}

// Fail records err unless a failure is already recorded. The message is
// the catalog text for the code, followed by the detail when present.
func (c *Context) Fail(ctx context.Context, err error) {
	if c.err != nil || err == nil {
		return
	}
	se := As(err)
	c.err = se
	c.state = StateError
	msg := c.catalog.Message(ctx, se.Code)
	if se.Detail != "" {
		msg += " -> " + se.Detail
	}
	c.message = msg
}

func (c *Context) Failed() bool { return c.state == StateError }

func (c *Context) State() State { return c.state }

func (c *Context) Message() string { return c.message }

// Err returns the recorded failure, or nil.
func (c *Context) Err() *Error { return c.err }

// HTTPStatus is 200 on success, otherwise the status of the failure kind.
func (c *Context) HTTPStatus() int {
	if c.err == nil {
		return 200
	}
	return c.err.Kind.HTTPStatus()
}

// Response renders the context for the caller. Internal kinds are replaced
// with the generic internal message so configuration detail never leaks.
func (c *Context) Response(ctx context.Context) Response {
	if c.err != nil && c.err.Kind.Internal() {
		return Response{Status: StateError, Message: c.catalog.Message(ctx, CodeInternal)}
	}
	return Response{Status: c.state, Message: c.message}
}
