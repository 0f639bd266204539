package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PostbackMetrics 回调中继指标
type PostbackMetrics struct {
	// 入站回调
	ReceivedTotal   *prometheus.CounterVec
	ReceiveDuration *prometheus.HistogramVec

	// 结算
	SettledTotal       *prometheus.CounterVec
	SettledAmountTotal *prometheus.CounterVec
	DuplicatesTotal    *prometheus.CounterVec

	// 下游转发
	ForwardTotal    *prometheus.CounterVec
	ForwardDuration *prometheus.HistogramVec
	RetryEnqueued   *prometheus.CounterVec

	// 审计写入失败
	AuditErrorsTotal *prometheus.CounterVec
}

// NewPostbackMetrics 创建指标并注册到 reg；reg 为空时使用默认注册表
func NewPostbackMetrics(reg prometheus.Registerer) *PostbackMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PostbackMetrics{
		ReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_received_total",
				Help: "入站回调数量，按来源与处理结果区分",
			},
			[]string{"provider_code", "outcome"},
		),
		ReceiveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postback_receive_duration_seconds",
				Help:    "入站回调处理耗时",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		SettledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_settled_total",
				Help: "实际变更余额的结算次数",
			},
			[]string{"provider_code", "unit", "status"},
		),
		SettledAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_settled_amount_total",
				Help: "结算金额合计（积分或现金）",
			},
			[]string{"unit", "status"},
		),
		DuplicatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_duplicates_total",
				Help: "被幂等回执拦截的重复回调",
			},
			[]string{"provider_code"},
		),
		ForwardTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_forward_total",
				Help: "下游转发次数，按合作方与结果区分",
			},
			[]string{"partner", "outcome"},
		),
		ForwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postback_forward_duration_seconds",
				Help:    "下游转发耗时",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"partner"},
		),
		RetryEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_forward_retry_enqueued_total",
				Help: "进入重试队列的转发次数",
			},
			[]string{"partner"},
		),
		AuditErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postback_audit_errors_total",
				Help: "审计日志写入失败次数",
			},
			[]string{"direction"},
		),
	}
}

// RecordReceived 记录一次入站处理结果
func (m *PostbackMetrics) RecordReceived(providerCode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReceivedTotal.WithLabelValues(providerCode, outcome).Inc()
	m.ReceiveDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordSettled 记录一次余额变更
func (m *PostbackMetrics) RecordSettled(providerCode, unit, status string, amount float64) {
	if m == nil {
		return
	}
	m.SettledTotal.WithLabelValues(providerCode, unit, status).Inc()
	if amount > 0 {
		m.SettledAmountTotal.WithLabelValues(unit, status).Add(amount)
	}
}

// RecordDuplicate 记录重复回调
func (m *PostbackMetrics) RecordDuplicate(providerCode string) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.WithLabelValues(providerCode).Inc()
}

// RecordForward 记录一次下游转发
func (m *PostbackMetrics) RecordForward(partner, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ForwardTotal.WithLabelValues(partner, outcome).Inc()
	m.ForwardDuration.WithLabelValues(partner).Observe(elapsed.Seconds())
}

// RecordRetryEnqueued 记录进入重试队列
func (m *PostbackMetrics) RecordRetryEnqueued(partner string) {
	if m == nil {
		return
	}
	m.RetryEnqueued.WithLabelValues(partner).Inc()
}

// RecordAuditError 记录审计写入失败
func (m *PostbackMetrics) RecordAuditError(direction string) {
	if m == nil {
		return
	}
	m.AuditErrorsTotal.WithLabelValues(direction).Inc()
}
