// Package metrics - счётчики relay в формате Prometheus.
// Nil *Metrics допустим и ничего не записывает.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	LiveConnections    *prometheus.GaugeVec
	MessagesPersisted  *prometheus.CounterVec
	PersistFailures    *prometheus.CounterVec
	DeliveryFailures   *prometheus.CounterVec
	ProtocolErrors     prometheus.Counter
	BusPublishFailures prometheus.Counter
}

// New регистрирует коллекторы в reg
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		LiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_live_connections",
			Help: "Live websocket connections per room.",
		}, []string{"room"}),
		MessagesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_persisted_total",
			Help: "Messages accepted by the store.",
		}, []string{"room"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_persist_failures_total",
			Help: "Messages rejected because the store failed.",
		}, []string{"room"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Members pruned after a failed delivery.",
		}, []string{"room"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_protocol_errors_total",
			Help: "Connections closed because of a malformed inbound frame.",
		}),
		BusPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_bus_publish_failures_total",
			Help: "Accepted messages that could not be relayed to other instances.",
		}),
	}

	reg.MustRegister(
		m.LiveConnections,
		m.MessagesPersisted,
		m.PersistFailures,
		m.DeliveryFailures,
		m.ProtocolErrors,
		m.BusPublishFailures,
	)
	return m
}

// Handler отдаёт реестр на /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SetLive(room string, n int) {
	if m == nil {
		return
	}
	m.LiveConnections.WithLabelValues(room).Set(float64(n))
}

func (m *Metrics) Persisted(room string) {
	if m == nil {
		return
	}
	m.MessagesPersisted.WithLabelValues(room).Inc()
}

func (m *Metrics) PersistFailed(room string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(room).Inc()
}

func (m *Metrics) DeliveryFailed(room string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(room).Inc()
}

func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

func (m *Metrics) BusPublishFailed() {
	if m == nil {
		return
	}
	m.BusPublishFailures.Inc()
}
