package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 引擎操作耗时（秒）
	EngineOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progression_operation_duration_seconds",
			Help:    "Duration of progression engine operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "outcome"},
	)

	// 阶段推进计数
	StageAdvanceCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_stage_advance_total",
			Help: "Total number of stage advances by target stage",
		},
		[]string{"new_stage"},
	)

	// 推进评估结果计数
	AdvanceEvaluationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_advance_evaluation_total",
			Help: "Outcomes of consensus evaluations",
		},
		[]string{"outcome"}, // advanced, no_consensus, final_stage, inactive
	)

	// 一致性违规（锁机制失效，属于缺陷）
	ConsistencyViolationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_consistency_violation_total",
			Help: "Detected stage-advance races; any non-zero value is a defect",
		},
		[]string{"operation"},
	)

	// 外部依赖失败（通知、邮件、活动日志）
	DependencyFailureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_dependency_failure_total",
			Help: "Best-effort dependency failures that were logged and swallowed",
		},
		[]string{"dependency"},
	)

	// 通知发送计数
	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_notification_total",
			Help: "Notifications delivered by channel and status",
		},
		[]string{"channel", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库慢查询
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Outbox 发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox events published by routing key and status",
		},
		[]string{"routing_key", "status"},
	)

	// 熔断器状态：0 closed, 1 open, 2 half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

// ObserveEngineOperation 记录引擎操作耗时
func ObserveEngineOperation(operation, outcome string, duration time.Duration) {
	EngineOperationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// IncrementStageAdvance 增加阶段推进计数
func IncrementStageAdvance(newStage int) {
	StageAdvanceCount.WithLabelValues(strconv.Itoa(newStage)).Inc()
}

// IncrementAdvanceEvaluation 增加推进评估计数
func IncrementAdvanceEvaluation(outcome string) {
	AdvanceEvaluationCount.WithLabelValues(outcome).Inc()
}

// IncrementConsistencyViolation 增加一致性违规计数
func IncrementConsistencyViolation(operation string) {
	ConsistencyViolationCount.WithLabelValues(operation).Inc()
}

// IncrementDependencyFailure 增加依赖失败计数
func IncrementDependencyFailure(dependency string) {
	DependencyFailureCount.WithLabelValues(dependency).Inc()
}

// IncrementNotification 增加通知计数
func IncrementNotification(channel, status string) {
	NotificationCount.WithLabelValues(channel, status).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 增加慢查询计数并记录耗时
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	DBQueryDuration.WithLabelValues("slow").Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementOutboxPublish 增加 outbox 发布计数
func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}

// SetCircuitBreakerState 记录熔断器状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
