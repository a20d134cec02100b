package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/reelkit/core"
)

// 重算结果标签
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCanceled = "canceled"
	ResultInvalid  = "invalid"
)

// Metrics 是推荐链路的 Prometheus 指标。零值指针安全，未配置时所有方法为空操作。
type Metrics struct {
	recomputeTotal    *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	candidatesSkipped *prometheus.CounterVec
	catalogRequests   *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时只创建不注册。
// vectors 非空时注册 vector_vocabulary_size，采集时读取词表长度。
func NewMetrics(reg prometheus.Registerer, vectors core.VectorIndex) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		recomputeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_recompute_total",
			Help: "Total number of recommendation recomputes by result",
		}, []string{"result"}),
		recomputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommend_recompute_duration_seconds",
			Help:    "Recommendation recompute latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms 到约 40s
		}),
		candidatesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_candidates_skipped_total",
			Help: "Total number of candidates skipped during scoring by reason",
		}, []string{"reason"}),
		catalogRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of catalog requests by endpoint and status",
		}, []string{"endpoint", "status"}),
	}
	if vectors != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vector_vocabulary_size",
			Help: "Current number of features in the shared vocabulary",
		}, func() float64 { return float64(vectors.Size()) })
	}
	return m
}

func (m *Metrics) observeRecompute(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recomputeTotal.WithLabelValues(result).Inc()
	m.recomputeDuration.Observe(elapsed.Seconds())
}

// CandidateSkipped 记录一个被跳过的候选。
func (m *Metrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.candidatesSkipped.WithLabelValues(reason).Inc()
}

// CatalogRequest 记录一次目录请求，签名与 catalog.WithRequestHook 一致。
func (m *Metrics) CatalogRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(endpoint, status).Inc()
}
