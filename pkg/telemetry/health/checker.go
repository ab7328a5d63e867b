package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status values reported by the health endpoints.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a single readiness check when none is configured.
const DefaultCheckTimeout = 5 * time.Second

// CheckFunc reports the health of one component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Observer is notified of every check outcome. The server uses it to keep the
// backend health gauge current.
type Observer func(name string, healthy bool)

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Report is the body of the readiness endpoint.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool {
	return r.Status == StatusReady
}

// Checker runs named readiness checks. Liveness never consults it: the
// liveness endpoint answers as long as the process can serve HTTP.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
	observer     Observer
}

// New creates a checker whose individual checks are bounded by timeout.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: timeout,
	}
}

// SetObserver installs fn to receive check outcomes. Passing nil removes it.
func (c *Checker) SetObserver(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// RegisterCheck adds or replaces the check called name.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// UnregisterCheck removes the check called name.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckCount returns the number of registered checks.
func (c *Checker) CheckCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.checks)
}

// CheckReadiness runs every registered check concurrently and aggregates
// the results. The report is "ready" when all checks pass, or when none are
// registered, and "degraded" otherwise.
func (c *Checker) CheckReadiness(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	observer := c.observer
	c.mu.RUnlock()

	report := Report{
		Status:    StatusReady,
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()

			result := c.runCheck(ctx, fn)
			if observer != nil {
				observer(name, result.Status == StatusHealthy)
			}

			mu.Lock()
			report.Checks[name] = result
			if result.Status != StatusHealthy {
				report.Status = StatusDegraded
			}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	return report
}

func (c *Checker) runCheck(ctx context.Context, fn CheckFunc) (result CheckResult) {
	start := time.Now()
	defer func() {
		result.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	}()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("check panicked: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	case <-ctx.Done():
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("check timed out after %v", c.checkTimeout)}
	}
}
