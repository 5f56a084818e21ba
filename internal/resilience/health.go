package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latencyNs"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthReport is the result of running every registered check.
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
	Uptime     string            `json:"uptime"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	startTime time.Time
	timeout   time.Duration
}

// NewHealthChecker creates a checker whose checks are bounded by timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
		timeout:   timeout,
	}
}

// Register adds a named check.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs all checks concurrently. The overall status is the worst component status.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.RLock()
	checks := make(map[string]HealthCheck, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]ComponentHealth, 0, len(checks))
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, c HealthCheck) {
			defer wg.Done()
			start := time.Now()
			health := runCheck(ctx, n, c)
			health.Name = n
			health.Latency = time.Since(start)

			mu.Lock()
			results = append(results, health)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	overall := HealthStatusHealthy
	for _, r := range results {
		switch r.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	return HealthReport{
		Status:     overall,
		Components: results,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		CheckedAt:  time.Now().UTC(),
	}
}

func runCheck(ctx context.Context, name string, check HealthCheck) (health ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			health = ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("check %s panicked: %v", name, r),
			}
		}
	}()
	return check(ctx)
}

// BreakerHealth reports endpoints with open circuits as degraded.
func BreakerHealth(breakers ...*Breaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		open := 0
		for _, b := range breakers {
			if b.State() == CircuitOpen {
				open++
			}
		}
		switch {
		case len(breakers) > 0 && open == len(breakers):
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: "all market data endpoints are failing"}
		case open > 0:
			return ComponentHealth{Status: HealthStatusDegraded, Message: fmt.Sprintf("%d of %d market data endpoints failing", open, len(breakers))}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}
