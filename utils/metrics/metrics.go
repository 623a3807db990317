// Package metrics 仿真引擎的Prometheus指标
// 每个引擎使用独立的Registry，避免多个引擎实例（如测试中）重复注册
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 引擎指标集合，每步更新一次
type Metrics struct {
	registry *prometheus.Registry

	admitted  prometheus.Counter
	completed prometheus.Counter
	blocked   prometheus.Counter
	dropped   prometheus.Counter
	inTransit prometheus.Gauge
	tick      prometheus.Gauge

	queueLength *prometheus.GaugeVec
	avgWait     *prometheus.GaugeVec
	waitTicks   prometheus.Histogram
}

// New 创建指标集合
// 参数：job-任务名，作为常量标签
func New(job string) *Metrics {
	labels := prometheus.Labels{"job": job}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "junction_admitted_vehicles_total",
			Help:        "Vehicles admitted into the intersection",
			ConstLabels: labels,
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "junction_completed_vehicles_total",
			Help:        "Vehicles that finished crossing",
			ConstLabels: labels,
		}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "junction_blocked_arrivals_total",
			Help:        "Arrivals that found their lane full",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "junction_dropped_arrivals_total",
			Help:        "Arrivals discarded because their lane was full",
			ConstLabels: labels,
		}),
		inTransit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "junction_in_transit_vehicles",
			Help:        "Vehicles currently inside the intersection",
			ConstLabels: labels,
		}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "junction_tick",
			Help:        "Last fully applied simulation tick",
			ConstLabels: labels,
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "junction_lane_queue_length",
			Help:        "Vehicles queued per lane",
			ConstLabels: labels,
		}, []string{"lane"}),
		avgWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "junction_lane_average_wait_ticks",
			Help:        "Average ticks spent queued by admitted vehicles per lane",
			ConstLabels: labels,
		}, []string{"lane"}),
		waitTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "junction_wait_ticks",
			Help:        "Distribution of ticks spent queued before admission",
			ConstLabels: labels,
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
	}
	m.registry.MustRegister(
		m.admitted, m.completed, m.blocked, m.dropped, m.inTransit, m.tick,
		m.queueLength, m.avgWait, m.waitTicks,
	)
	return m
}

// Registry 指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 提供/metrics的HTTP处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Admitted 记录一次放行及其排队步数
func (m *Metrics) Admitted(wait int32) {
	m.admitted.Inc()
	m.waitTicks.Observe(float64(wait))
}

// Completed 记录完成通过的车辆数
func (m *Metrics) Completed(n int) {
	m.completed.Add(float64(n))
}

// Blocked 记录一次车道已满的到达
func (m *Metrics) Blocked() {
	m.blocked.Inc()
}

// Dropped 记录一次被丢弃的到达
func (m *Metrics) Dropped() {
	m.dropped.Inc()
}

// SetLane 更新车道排队长度与平均等待
func (m *Metrics) SetLane(laneID int32, queueLength int, avgWait float64) {
	label := fmt.Sprint(laneID)
	m.queueLength.WithLabelValues(label).Set(float64(queueLength))
	m.avgWait.WithLabelValues(label).Set(avgWait)
}

// SetTick 更新最近完成的步数与在途车辆数
func (m *Metrics) SetTick(tick int32, inTransit int) {
	m.tick.Set(float64(tick))
	m.inTransit.Set(float64(inTransit))
}
