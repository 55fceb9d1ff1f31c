package channel

import "github.com/prometheus/client_golang/prometheus"

// Metrics are lifetime per-channel counters, labeled by channel name.
type Metrics struct {
	sent     *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	depth    *prometheus.GaugeVec
	dataLoss *prometheus.GaugeVec
}

// NewMetrics registers collectors with reg, nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	labels := []string{"channel"}
	self := &Metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skybus", Subsystem: "channel", Name: "sent_total",
			Help: "Frames delivered to transport.",
		}, labels),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skybus", Subsystem: "channel", Name: "dropped_total",
			Help: "Frames rejected by backpressure or lost on transport failure.",
		}, labels),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "skybus", Subsystem: "channel", Name: "queue_depth",
			Help: "Frames waiting in queue.",
		}, labels),
		dataLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "skybus", Subsystem: "channel", Name: "data_loss",
			Help: "Sticky data loss flag, 1 until reset.",
		}, labels),
	}
	if reg != nil {
		reg.MustRegister(self.sent, self.dropped, self.depth, self.dataLoss)
	}
	return self
}

type channelMetrics struct {
	sent     prometheus.Counter
	dropped  prometheus.Counter
	depth    prometheus.Gauge
	dataLoss prometheus.Gauge
}

func (self *Metrics) forChannel(name string) channelMetrics {
	return channelMetrics{
		sent:     self.sent.WithLabelValues(name),
		dropped:  self.dropped.WithLabelValues(name),
		depth:    self.depth.WithLabelValues(name),
		dataLoss: self.dataLoss.WithLabelValues(name),
	}
}
