package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"amora-realtime/pkg/logger"
)

// State represents the state of a circuit breaker
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half_open"
	StateOpen     State = "open"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards calls to an external provider. After too many consecutive
// failures it rejects calls outright until a cooldown passes, then lets a
// probe through before fully closing again.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time

	metrics *breakerMetrics
}

type breakerMetrics struct {
	requestsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	stateGauge    *prometheus.GaugeVec
}

var (
	breakerMetricsInstance *breakerMetrics
	breakerMetricsOnce     sync.Once
)

func initBreakerMetrics() *breakerMetrics {
	breakerMetricsOnce.Do(func() {
		breakerMetricsInstance = &breakerMetrics{
			requestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_requests_total",
					Help: "Total number of calls through a circuit breaker",
				},
				[]string{"breaker", "operation", "status"},
			),
			errorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_errors_total",
					Help: "Total number of errors seen by a circuit breaker",
				},
				[]string{"breaker", "operation", "error_type"},
			),
			stateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "State of a circuit breaker (0=closed, 1=half_open, 2=open)",
			}, []string{"breaker"}),
		}
		prometheus.MustRegister(breakerMetricsInstance.requestsTotal)
		prometheus.MustRegister(breakerMetricsInstance.errorsTotal)
		prometheus.MustRegister(breakerMetricsInstance.stateGauge)
	})
	return breakerMetricsInstance
}

// NewBreaker creates a closed breaker that opens after threshold consecutive
// failures and probes again after cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		metrics:   initBreakerMetrics(),
	}
}

// Execute runs fn behind the breaker. When the breaker is open the call is
// rejected with ErrOpen and fn is never invoked.
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if !b.allow() {
		b.metrics.requestsTotal.WithLabelValues(b.name, operation, "rejected").Inc()
		return fmt.Errorf("%s %s rejected: %w", b.name, operation, ErrOpen)
	}

	err := fn(ctx)
	if err != nil {
		b.recordFailure(operation, err)
		b.metrics.requestsTotal.WithLabelValues(b.name, operation, "failure").Inc()
		b.metrics.errorsTotal.WithLabelValues(b.name, operation, classifyError(err)).Inc()
		return err
	}

	b.recordSuccess(operation)
	b.metrics.requestsTotal.WithLabelValues(b.name, operation, "success").Inc()
	return nil
}

// CurrentState returns the breaker state
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailureTime) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.metrics.stateGauge.WithLabelValues(b.name).Set(1)
		logger.Warn("circuit breaker half-open, allowing probe",
			zap.String("breaker", b.name))
	}
	return true
}

func (b *Breaker) recordSuccess(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		logger.Info("circuit breaker closed",
			zap.String("breaker", b.name),
			zap.String("operation", operation))
	}
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.metrics.stateGauge.WithLabelValues(b.name).Set(0)
}

func (b *Breaker) recordFailure(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureTime = time.Now()

	// A failed half-open probe reopens immediately.
	if b.state == StateHalfOpen || b.consecutiveFailures >= b.threshold {
		if b.state != StateOpen {
			logger.Error("circuit breaker open",
				zap.String("breaker", b.name),
				zap.String("operation", operation),
				zap.Int("consecutive_failures", b.consecutiveFailures),
				zap.Error(err))
		}
		b.state = StateOpen
		b.metrics.stateGauge.WithLabelValues(b.name).Set(2)
	}
}

// classifyError buckets errors for metrics labels
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "network unreachable"):
		return "network"
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "dns"):
		return "dns"
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "permission denied"):
		return "permission"
	case strings.Contains(errMsg, "circuit breaker"):
		return "circuit_breaker"
	default:
		return "unknown"
	}
}
