package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 收集聊天中繼的運行指標。
//
//   - ActiveConnections: 當前註冊的連接數
//   - Actions: 入站動作，按 action 和 result(ok|ignored|malformed|error|throttled) 分類
//   - Deliveries: 出站推送，按 result(delivered|dropped) 分類
//
// 所有方法都接受 nil 接收者，未配置指標時可以直接傳 nil。
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Actions           *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
}

// NewMetrics 在給定的 Registerer 上註冊所有指標
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of live connections in the registry.",
		}),
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_actions_total",
			Help: "Inbound protocol actions by action and result.",
		}, []string{"action", "result"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Per-recipient outbound deliveries by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) Action(action, result string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues("delivered").Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues("dropped").Inc()
}
