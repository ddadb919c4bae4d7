// Package health tracks the state of the gateway's dependencies.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Probe checks one dependency. Non-critical probes are reported but do not
// make the gateway unready.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Result is the outcome of the last run of a probe.
type Result struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Critical  bool      `json:"critical"`
	CheckedAt time.Time `json:"checked_at"`
}

const (
	StatusHealthy   = "Healthy"
	StatusUnhealthy = "Unhealthy"
)

type Checker struct {
	probes  []Probe
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	results map[string]Result
}

func NewChecker(logger *slog.Logger, probes ...Probe) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{probes: probes, timeout: 3 * time.Second, logger: logger, results: map[string]Result{}}
}

// Check runs every probe now and returns whether all critical probes pass.
func (c *Checker) Check(ctx context.Context) (bool, map[string]Result) {
	results := make(map[string]Result, len(c.probes))
	ready := true
	for _, p := range c.probes {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Check(pctx)
		cancel()
		r := Result{Status: StatusHealthy, Critical: p.Critical, CheckedAt: time.Now()}
		if err != nil {
			r.Status = StatusUnhealthy
			r.Error = err.Error()
			if p.Critical {
				ready = false
			}
			c.logger.WarnContext(ctx, "health probe failed", "probe", p.Name, "error", err)
		}
		results[p.Name] = r
	}
	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	return ready, results
}

// Last returns the results of the most recent run.
func (c *Checker) Last() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Start re-runs the probes every interval until ctx is done.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Check(ctx)
			}
		}
	}()
}

// HTTPProbe reports whether baseURL/healthz answers with a 2xx status.
func HTTPProbe(baseURL string, client *http.Client) func(ctx context.Context) error {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	url := strings.TrimSuffix(baseURL, "/") + "/healthz"
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}
