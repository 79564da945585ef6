package metrics

import (
	"time"

	"accountstate/internal/account"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "account_state"

// Collector 账户服务的 Prometheus 指标
type Collector struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
	outbox       *prometheus.CounterVec
	circuitState *prometheus.GaugeVec
}

// New 创建指标并注册到 reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Account operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Account operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Account status transitions",
			},
			[]string{"from", "to"},
		),
		outbox: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_messages_total",
				Help:      "Outbox deliveries by result (sent, retry, failed, requeued)",
			},
			[]string{"result"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
	reg.MustRegister(c.operations, c.latency, c.transitions, c.outbox, c.circuitState)
	return c
}

// ObserveOperation 记录一次账户操作；result 取自 account.Classify
func (c *Collector) ObserveOperation(operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, account.Classify(err)).Inc()
	c.latency.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) ObserveTransition(from, to account.Status) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) ObserveOutbox(result string) {
	if c == nil {
		return
	}
	c.outbox.WithLabelValues(result).Inc()
}

// SetCircuitState state: 0=closed, 1=open, 2=half-open
func (c *Collector) SetCircuitState(name string, state int) {
	if c == nil {
		return
	}
	c.circuitState.WithLabelValues(name).Set(float64(state))
}

// OutboxCounter 返回指定结果的发件箱计数器
func (c *Collector) OutboxCounter(result string) prometheus.Counter {
	return c.outbox.WithLabelValues(result)
}
