package mealoracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// BreakerState is the state of a Guarded oracle.
type BreakerState int

const (
	// BreakerClosed passes requests to the oracle.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until ResetAfter has elapsed.
	BreakerOpen
	// BreakerHalfOpen lets a single probe request through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Guarded oracle stops calling its backend.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// ResetAfter is how long the breaker stays open before a probe is allowed.
	ResetAfter time.Duration
}

// DefaultBreakerConfig opens after 3 failures and probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:  3,
		ResetAfter: 30 * time.Second,
	}
}

// Guarded wraps an oracle so a backend that keeps failing is skipped for a while,
// letting callers go straight to their fallback meals instead of waiting on timeouts.
type Guarded struct {
	next   Oracle
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

var _ Oracle = (*Guarded)(nil)

// NewGuarded wraps next with a circuit breaker.
func NewGuarded(next Oracle, cfg BreakerConfig, logger *zap.Logger) *Guarded {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBreakerConfig().Threshold
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = DefaultBreakerConfig().ResetAfter
	}
	return &Guarded{
		next:   next,
		cfg:    cfg,
		logger: logger.Named("meal-breaker"),
		now:    time.Now,
	}
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) Recommend(ctx context.Context, query models.MealQuery) (models.MealPlan, error) {
	if err := g.allow(); err != nil {
		return models.MealPlan{}, err
	}

	plan, err := g.next.Recommend(ctx, query)
	if err != nil {
		g.recordFailure()
		return models.MealPlan{}, err
	}
	g.recordSuccess()
	return plan, nil
}

// State returns the current breaker state.
func (g *Guarded) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guarded) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if g.now().Sub(g.lastFailure) > g.cfg.ResetAfter {
			g.state = BreakerHalfOpen
			return nil
		}
		return fmt.Errorf("%w: %s failed %d times in a row", ErrUnavailable, g.next.Name(), g.failures)
	default:
		return fmt.Errorf("%w: waiting for %s probe", ErrUnavailable, g.next.Name())
	}
}

func (g *Guarded) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != BreakerClosed {
		g.logger.Info("Meal oracle recovered", zap.String("oracle", g.next.Name()))
	}
	g.failures = 0
	g.state = BreakerClosed
}

func (g *Guarded) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures++
	g.lastFailure = g.now()

	if g.state == BreakerHalfOpen || g.failures >= g.cfg.Threshold {
		if g.state != BreakerOpen {
			g.logger.Warn("Meal oracle circuit opened",
				zap.String("oracle", g.next.Name()),
				zap.Int("consecutive_failures", g.failures))
		}
		g.state = BreakerOpen
	}
}
