// Package stats 采集服务端的 prometheus 指标。
package stats

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/favbox/asyncweb/common/hlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "asyncweb"

// ContentType 是指标文本格式的内容类型。
const ContentType = string(expfmt.FmtText)

// Metrics 记录连接与请求指标。零值指针可安全调用，此时不做任何记录。
type Metrics struct {
	connections prometheus.Gauge
	requests    *prometheus.CounterVec
	parseErrors *prometheus.CounterVec
	sentBytes   prometheus.Counter
	latency     prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New 创建指标并注册到 reg，reg 为空时使用 prometheus.DefaultRegisterer。
// 同名指标已注册时复用已有的采集器。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		connections: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections", Help: "当前连接数",
		})),
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total", Help: "已结束的请求数",
		}, []string{"method", "code", "state"})),
		parseErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "parse_errors_total", Help: "解析失败的请求数",
		}, []string{"code"})),
		sentBytes: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "response_acked_bytes_total", Help: "已确认的响应字节数",
		})),
		latency: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_duration_seconds", Help: "连接建立到断开的耗时",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 60},
		})),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	hlog.SystemLogger().Warnf("注册指标失败：%v", err)
	return c
}

// ConnOpened 记录新连接。
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// RequestDone 记录连接断开时请求的结果。code 为 0 表示未产生响应。
func (m *Metrics) RequestDone(method string, code int, state string, acked int, cost time.Duration) {
	if m == nil {
		return
	}
	m.connections.Dec()
	m.requests.WithLabelValues(method, strconv.Itoa(code), state).Inc()
	m.sentBytes.Add(float64(acked))
	m.latency.Observe(cost.Seconds())
}

// ParseError 记录解析失败，code 为应答的状态码。
func (m *Metrics) ParseError(code int) {
	if m != nil {
		m.parseErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

// WriteText 以 prometheus 文本格式写出全部指标。
func (m *Metrics) WriteText(w io.Writer) error {
	g := prometheus.DefaultGatherer
	if m != nil {
		g = m.gatherer
	}
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err = enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
