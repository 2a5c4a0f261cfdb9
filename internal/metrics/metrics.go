package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 评审流程的 Prometheus 指标
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	roundsTotal    *prometheus.CounterVec
	agentFallbacks *prometheus.CounterVec
	agentDuration  *prometheus.HistogramVec
	roundDuration  prometheus.Histogram
	runsActive     prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default 返回注册到全局 registry 的实例（只注册一次，避免重复注册 panic）
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew 在给定 registerer 上注册指标；测试里传 prometheus.NewRegistry()
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_review",
			Subsystem: "review",
			Name:      "runs_total",
			Help:      "Finished review runs by final decision.",
		}, []string{"decision"}),
		roundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_review",
			Subsystem: "review",
			Name:      "rounds_total",
			Help:      "Completed review rounds by critic status.",
		}, []string{"status"}),
		agentFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_review",
			Subsystem: "agent",
			Name:      "fallbacks_total",
			Help:      "Agent invocations that used the heuristic fallback.",
		}, []string{"agent"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paper_review",
			Subsystem: "agent",
			Name:      "duration_seconds",
			Help:      "Time spent in each review agent.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "paper_review",
			Subsystem: "review",
			Name:      "round_duration_seconds",
			Help:      "Wall time of one fan-out/join round including the critic.",
			Buckets:   prometheus.DefBuckets,
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "paper_review",
			Subsystem: "review",
			Name:      "runs_active",
			Help:      "Review runs currently executing.",
		}),
	}

	m.runsTotal = register(reg, m.runsTotal)
	m.roundsTotal = register(reg, m.roundsTotal)
	m.agentFallbacks = register(reg, m.agentFallbacks)
	m.agentDuration = register(reg, m.agentDuration)
	m.roundDuration = register(reg, m.roundDuration)
	m.runsActive = register(reg, m.runsActive)
	return m
}

// register 已注册时复用已有 collector
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) IncRun(decision string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncRound(status string) {
	if m == nil {
		return
	}
	m.roundsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncAgentFallback(agent string) {
	if m == nil {
		return
	}
	m.agentFallbacks.WithLabelValues(agent).Inc()
}

func (m *Metrics) ObserveAgent(agent string, d time.Duration) {
	if m == nil {
		return
	}
	m.agentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

func (m *Metrics) ObserveRound(d time.Duration) {
	if m == nil {
		return
	}
	m.roundDuration.Observe(d.Seconds())
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}
