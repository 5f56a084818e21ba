package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHealthCheckerWorstStatusWins(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.Register("ledger", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: HealthStatusHealthy}
	})
	h.Register("market", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: HealthStatusDegraded, Message: "slow"}
	})

	report := h.Check(context.Background())
	if report.Status != HealthStatusDegraded {
		t.Fatalf("status = %s, want DEGRADED", report.Status)
	}
	if len(report.Components) != 2 || report.Components[0].Name != "ledger" {
		t.Fatalf("components not sorted by name: %+v", report.Components)
	}
}

func TestHealthCheckerRecoversPanics(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.Register("broken", func(ctx context.Context) ComponentHealth {
		panic("nil store")
	})

	report := h.Check(context.Background())
	if report.Status != HealthStatusUnhealthy {
		t.Fatalf("status = %s, want UNHEALTHY", report.Status)
	}
}

func TestBreakerHealth(t *testing.T) {
	a := NewBreaker("a", BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}, zerolog.Nop())
	b := NewBreaker("b", BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}, zerolog.Nop())
	check := BreakerHealth(a, b)

	if got := check(context.Background()).Status; got != HealthStatusHealthy {
		t.Fatalf("status = %s, want HEALTHY", got)
	}
	a.Failure(errors.New("down"))
	if got := check(context.Background()).Status; got != HealthStatusDegraded {
		t.Fatalf("status = %s, want DEGRADED", got)
	}
	b.Failure(errors.New("down"))
	if got := check(context.Background()).Status; got != HealthStatusUnhealthy {
		t.Fatalf("status = %s, want UNHEALTHY", got)
	}
}
