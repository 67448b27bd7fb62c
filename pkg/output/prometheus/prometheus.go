// Package prometheus exposes the latest reading of every input as a gauge.
package prometheus

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
	"github.com/ericogr/as7341-to-mqtt/pkg/output"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor"
)

const (
	namespace     = "as7341"
	DefaultListen = ":9100"
	metricsPath   = "/metrics"
)

type PrometheusOutput struct {
	value    *prometheus.GaugeVec
	lastRead *prometheus.GaugeVec
	errors   *prometheus.CounterVec
	server   *http.Server
	addr     string
}

var _ output.ErrorRecorder = (*PrometheusOutput)(nil)

// New registers the metrics in a fresh registry and serves it on cfg.Listen.
func New(cfg config.PrometheusConfig) (output.Output, error) {
	listen := cfg.Listen
	if listen == "" {
		listen = DefaultListen
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	p := newWithRegistry(reg)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("prometheus listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	}))
	p.server = &http.Server{Handler: mux}
	p.addr = ln.Addr().String()
	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("prometheus server stopped")
		}
	}()
	log.Infof("serving metrics on %s%s", p.addr, metricsPath)
	return p, nil
}

func newWithRegistry(reg prometheus.Registerer) *PrometheusOutput {
	p := &PrometheusOutput{
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_value",
			Help:      "Latest reading of an input (units: raw ADC counts)",
		}, []string{"sensor", "channel"}),
		lastRead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_read_timestamp_seconds",
			Help:      "Unix time of the latest successful read of an input",
		}, []string{"sensor"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed reads of an input",
		}, []string{"sensor"}),
	}
	reg.MustRegister(p.value, p.lastRead, p.errors)
	return p
}

// Addr is the address the metrics server listens on.
func (p *PrometheusOutput) Addr() string { return p.addr }

func (p *PrometheusOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		p.value.WithLabelValues(r.Sensor, r.Channel).Set(r.Value)
		p.lastRead.WithLabelValues(r.Sensor).Set(float64(r.Timestamp.UnixNano()) / 1e9)
	}
	return nil
}

func (p *PrometheusOutput) RecordError(sensorName string, err error) {
	p.errors.WithLabelValues(sensorName).Inc()
}

func (p *PrometheusOutput) Close() error {
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}
