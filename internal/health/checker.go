// Package health answers liveness and readiness probes.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker reports whether the application can serve chats. The
// bootstrap orchestrator implements it.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// CheckFunc is an extra dependency check.
type CheckFunc func(ctx context.Context) error

// Status is the health of one check or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult is the result of one check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is a probe answer.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether the service should receive traffic. A degraded
// service still does.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

type optionalCheck struct {
	name string
	fn   CheckFunc
}

// Checker runs the probes. Readiness results are cached for cacheTTL.
type Checker struct {
	bootstrap ReadinessChecker
	optional  []optionalCheck
	timeout   time.Duration
	cacheTTL  time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a checker whose readiness follows bootstrap.
func NewChecker(bootstrap ReadinessChecker) *Checker {
	return &Checker{
		bootstrap: bootstrap,
		timeout:   5 * time.Second,
		cacheTTL:  time.Second,
	}
}

// AddOptional registers a check whose failure degrades the service without
// taking it out of rotation. Register checks before serving probes.
func (c *Checker) AddOptional(name string, fn CheckFunc) {
	c.optional = append(c.optional, optionalCheck{name: name, fn: fn})
}

// Liveness always succeeds while the process runs.
func (c *Checker) Liveness(context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness reports unhealthy while bootstrap is incomplete or the service
// is shutting down.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cachedReady != nil && time.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	checks := map[string]CheckResult{"bootstrap": c.checkBootstrap(ctx)}
	overall := checks["bootstrap"].Status
	for _, oc := range c.optional {
		result := c.run(ctx, oc.fn, StatusDegraded)
		checks[oc.name] = result
		if result.Status != StatusHealthy && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	response := &Response{Status: overall, Checks: checks}

	c.mu.Lock()
	if !c.shuttingDown {
		c.cachedReady = response
		c.lastCheck = time.Now()
	}
	c.mu.Unlock()

	return response
}

func (c *Checker) checkBootstrap(ctx context.Context) CheckResult {
	if c.bootstrap == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "bootstrap not configured"}
	}
	return c.run(ctx, c.bootstrap.Ready, StatusUnhealthy)
}

func (c *Checker) run(ctx context.Context, fn CheckFunc, onFailure Status) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return CheckResult{Status: onFailure, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes every later readiness probe fail so load balancers
// stop sending chats before the server stops.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}
