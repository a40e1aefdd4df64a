package bus

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agenthive/internal/metrics"
	"github.com/BaSui01/agenthive/persistence"
)

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.With(zap.String("component", "bus"))
		}
	}
}

// WithHistoryLimit overrides the delivery history capacity. On overflow the
// history is trimmed to the most recent half of the limit.
func WithHistoryLimit(limit int) Option {
	return func(b *Bus) {
		if limit > 0 {
			b.historyLimit = limit
		}
	}
}

// WithStore mirrors every delivered message into a persistence store.
// Store failures are logged and never affect delivery.
func WithStore(store persistence.MessageStore) Option {
	return func(b *Bus) { b.store = store }
}

// WithDeliveryRate paces the delivery worker. Publish is never throttled;
// queued messages wait for limiter tokens before being handed to recipients.
func WithDeliveryRate(limit rate.Limit, burst int) Option {
	return func(b *Bus) {
		if limit > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithPopTimeout sets how long the delivery worker sleeps between idle
// queue checks. The wake channel covers the normal path; the timeout is a
// safety net against a missed wakeup.
func WithPopTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.popTimeout = d
		}
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(b *Bus) { b.metrics = collector }
}
