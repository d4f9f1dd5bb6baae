package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Prometheus struct {
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

var counterHelp = map[string]string{
	Ticks:             "Control loop iterations.",
	InvalidSamples:    "Snapshots with a not-a-number reading.",
	AlertsStarted:     "Alert excursions started.",
	AlertsStopped:     "Alert excursions cleared.",
	AlertFailures:     "Alert channel start, stop or step failures.",
	Published:         "Telemetry messages handed to the broker.",
	PublishFailures:   "Telemetry publishes rejected by the transport.",
	PublishSkipped:    "Telemetry cycles skipped for oversized payloads.",
	ConnectRetries:    "Failed connection step attempts.",
	Reconnects:        "Ready sessions lost and restarted.",
	CommandsApplied:   "Inbound commands applied.",
	CommandsDiscarded: "Inbound commands discarded as malformed, unknown or replayed.",
}

var gaugeHelp = map[string]string{
	ConnectionState: "Connection state index: 0 disconnected, 1 attaching, 2 establishing, 3 subscribing, 4 ready, 5 faulted.",
	Temperature:     "Last valid temperature reading.",
	Humidity:        "Last valid humidity reading.",
	WaterDetected:   "1 while the water probe reports presence.",
	AlertTriggered:  "1 while the humidity alert is triggered.",
}

// NewPrometheus registers every metric on a private registry so tests
// can build more than one.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
	}
	for name, help := range counterHelp {
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		p.registry.MustRegister(counter)
		p.counters[name] = counter
	}
	for name, help := range gaugeHelp {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		p.registry.MustRegister(gauge)
		p.gauges[name] = gauge
	}
	return p
}

func (p *Prometheus) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *Prometheus) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on listen until ctx is cancelled.
func (p *Prometheus) Serve(ctx context.Context, listen string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("serving metrics on %s", listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("metrics server: %v", err)
	}
}
