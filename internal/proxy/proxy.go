// Package proxy forwards validated parameters to an HTTP upstream.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/waploaj/DyAPI/internal/dispatch"
	"github.com/waploaj/DyAPI/internal/util"
)

// Handler POSTs the parameters as JSON to <base>/<method> and streams the
// upstream response back to the caller.
type Handler struct {
	dispatch.Fields
	target    *url.URL
	transport http.RoundTripper
}

// Factory returns a dispatch factory for the upstream at baseURL. A nil
// transport uses http.DefaultTransport.
func Factory(baseURL string, transport http.RoundTripper) (dispatch.Factory, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", baseURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", baseURL)
	}
	return func() (dispatch.Handler, error) {
		return &Handler{target: target, transport: transport}, nil
	}, nil
}

func (h *Handler) Invoke(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error {
	body, err := json.Marshal(h.Payload(params))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	upPath := strings.TrimSuffix(h.target.Path, "/") + "/" + strings.TrimPrefix(method, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := util.RequestIDFrom(ctx); id != "" {
		req.Header.Set(util.RequestIDHeader, id)
	}

	var proxyErr error
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = h.target.Scheme
			pr.Out.URL.Host = h.target.Host
			pr.Out.URL.Path = upPath
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = ""
			pr.Out.Host = h.target.Host
		},
		Transport: h.transport,
		ErrorHandler: func(_ http.ResponseWriter, _ *http.Request, err error) {
			proxyErr = err
		},
	}
	rp.ServeHTTP(w, req)
	if proxyErr != nil {
		return fmt.Errorf("upstream %s: %w", h.target.Host, proxyErr)
	}
	return nil
}
