package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 命令处理指标
type Metrics struct {
	CommandsProcessed *prometheus.CounterVec
	CommandsRejected  *prometheus.CounterVec
	CommandsFailed    *prometheus.CounterVec
	PublishFailures   prometheus.Counter
	CommandDuration   *prometheus.HistogramVec
	ActiveActors      prometheus.Gauge
}

// NewMetrics 创建并注册命令处理指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "commands_processed_total",
			Help:      "成功提交的命令总数",
		}, []string{"aggregate"}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "commands_rejected_total",
			Help:      "被领域校验拒绝的命令总数",
		}, []string{"aggregate"}),
		CommandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "commands_failed_total",
			Help:      "因基础设施或致命错误失败的命令总数",
		}, []string{"aggregate"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "publish_failures_total",
			Help:      "持久化成功但发布失败的事件批次数",
		}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "command_duration_seconds",
			Help:      "命令端到端处理耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"aggregate"}),
		ActiveActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jxt",
			Subsystem: "processor",
			Name:      "active_actors",
			Help:      "当前驻留内存的聚合actor数量",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CommandsProcessed,
			m.CommandsRejected,
			m.CommandsFailed,
			m.PublishFailures,
			m.CommandDuration,
			m.ActiveActors,
		)
	}
	return m
}
