package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 总线指标
	busMessagesPublished *prometheus.CounterVec
	busMessagesDelivered *prometheus.CounterVec
	busMessagesFailed    *prometheus.CounterVec
	busQueueDepth        prometheus.Gauge
	busDrainDuration     prometheus.Histogram

	// 辩论指标
	debatesStarted   prometheus.Counter
	debatesConcluded *prometheus.CounterVec
	debateRounds     prometheus.Histogram

	// 委派指标
	projectTransitions *prometheus.CounterVec
	subtasksCompleted  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 总线指标
	c.busMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_published_total",
			Help:      "Total number of messages accepted by the bus",
		},
		[]string{"kind"},
	)

	c.busMessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_delivered_total",
			Help:      "Total number of message deliveries to agent mailboxes",
		},
		[]string{"kind"},
	)

	c.busMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_failed_total",
			Help:      "Total number of failed deliveries or handler errors",
		},
		[]string{"reason"},
	)

	c.busQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_queue_depth",
			Help:      "Current number of messages waiting for delivery",
		},
	)

	c.busDrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_drain_duration_seconds",
			Help:      "Duration of a single drain pass over all agent mailboxes",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// 辩论指标
	c.debatesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debates_started_total",
			Help:      "Total number of debates created",
		},
	)

	c.debatesConcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debates_concluded_total",
			Help:      "Total number of concluded debates",
		},
		[]string{"method", "conclusive"},
	)

	c.debateRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "debate_rounds",
			Help:      "Number of rounds completed per debate",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	// 委派指标
	c.projectTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_transitions_total",
			Help:      "Total number of project status transitions",
		},
		[]string{"to_status"},
	)

	c.subtasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subtasks_completed_total",
			Help:      "Total number of finished subtasks",
		},
		[]string{"status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🚌 总线指标记录
// =============================================================================

// RecordPublish 记录一次消息发布
func (c *Collector) RecordPublish(kind string) {
	c.busMessagesPublished.WithLabelValues(kind).Inc()
}

// RecordDelivery 记录消息投递
func (c *Collector) RecordDelivery(kind string, recipients int) {
	c.busMessagesDelivered.WithLabelValues(kind).Add(float64(recipients))
}

// RecordFailure 记录投递或处理失败
func (c *Collector) RecordFailure(reason string) {
	c.busMessagesFailed.WithLabelValues(reason).Inc()
}

// SetQueueDepth 更新队列深度
func (c *Collector) SetQueueDepth(depth int) {
	c.busQueueDepth.Set(float64(depth))
}

// RecordDrain 记录一次 drain 耗时
func (c *Collector) RecordDrain(duration time.Duration) {
	c.busDrainDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🎭 辩论指标记录
// =============================================================================

// RecordDebateStarted 记录辩论创建
func (c *Collector) RecordDebateStarted() {
	c.debatesStarted.Inc()
}

// RecordDebateConcluded 记录辩论结束
func (c *Collector) RecordDebateConcluded(method string, conclusive bool, rounds int) {
	label := "false"
	if conclusive {
		label = "true"
	}
	c.debatesConcluded.WithLabelValues(method, label).Inc()
	c.debateRounds.Observe(float64(rounds))
}

// =============================================================================
// 📋 委派指标记录
// =============================================================================

// RecordProjectTransition 记录项目状态转换
func (c *Collector) RecordProjectTransition(toStatus string) {
	c.projectTransitions.WithLabelValues(toStatus).Inc()
}

// RecordSubtaskCompleted 记录子任务完成
func (c *Collector) RecordSubtaskCompleted(success bool) {
	status := "failed"
	if success {
		status = "completed"
	}
	c.subtasksCompleted.WithLabelValues(status).Inc()
}
