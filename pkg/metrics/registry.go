// Package metrics implements the orchestrator's process-wide, deduplicated instrument
// registry (C1) and its HTTP exposition endpoint.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/pkg/apierrors"
)

// Kind tags the instrument shape requested from get_or_create.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
)

type instrumentSchema struct {
	kind   Kind
	labels []string
}

// Registry wraps a prometheus.Registry with get_or_create idempotency: re-registering
// the same name with a compatible schema returns the existing instrument; an
// incompatible re-registration (different kind or label set) is a schema-mismatch error.
type Registry struct {
	mu          sync.Mutex
	prom        *prometheus.Registry
	schemas     map[string]instrumentSchema
	counters    map[string]*prometheus.CounterVec
	gauges      map[string]*prometheus.GaugeVec
	histograms  map[string]*prometheus.HistogramVec
	server      *http.Server
	listening   bool
	startedOnce sync.Once
}

// New creates an empty Registry. The process-start gauge required by Scenario F is
// registered immediately so it is always present in the first exposition.
func New() *Registry {
	r := &Registry{
		prom:       prometheus.NewRegistry(),
		schemas:    make(map[string]instrumentSchema),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	startGauge, _ := r.GetOrCreateGauge("orchestrator_process_start_timestamp_seconds", nil, "unix timestamp of process start")
	startGauge.WithLabelValues().Set(float64(time.Now().Unix()))
	return r
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, l := range a {
		seen[l] = true
	}
	for _, l := range b {
		if !seen[l] {
			return false
		}
	}
	return true
}

func (r *Registry) checkSchema(name string, kind Kind, labels []string) error {
	existing, ok := r.schemas[name]
	if !ok {
		r.schemas[name] = instrumentSchema{kind: kind, labels: labels}
		return nil
	}
	if existing.kind != kind || !sameLabels(existing.labels, labels) {
		return apierrors.SchemaMismatch(name, fmt.Errorf("incompatible re-registration: kind/labels differ from existing schema"))
	}
	return nil
}

// GetOrCreateCounter returns the named CounterVec, creating it on first call.
func (r *Registry) GetOrCreateCounter(name string, labels []string, help string) (*prometheus.CounterVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSchema(name, KindCounter, labels); err != nil {
		return nil, err
	}
	if c, ok := r.counters[name]; ok {
		return c, nil
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	if err := r.prom.Register(c); err != nil {
		return nil, apierrors.SchemaMismatch(name, err)
	}
	r.counters[name] = c
	return c, nil
}

// GetOrCreateGauge returns the named GaugeVec, creating it on first call.
func (r *Registry) GetOrCreateGauge(name string, labels []string, help string) (*prometheus.GaugeVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSchema(name, KindGauge, labels); err != nil {
		return nil, err
	}
	if g, ok := r.gauges[name]; ok {
		return g, nil
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	if err := r.prom.Register(g); err != nil {
		return nil, apierrors.SchemaMismatch(name, err)
	}
	r.gauges[name] = g
	return g, nil
}

// GetOrCreateHistogram returns the named HistogramVec, creating it on first call.
func (r *Registry) GetOrCreateHistogram(name string, labels []string, help string) (*prometheus.HistogramVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSchema(name, KindHistogram, labels); err != nil {
		return nil, err
	}
	if h, ok := r.histograms[name]; ok {
		return h, nil
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help}, labels)
	if err := r.prom.Register(h); err != nil {
		return nil, apierrors.SchemaMismatch(name, err)
	}
	r.histograms[name] = h
	return h, nil
}

// Gather returns the current exposition snapshot, the same data /metrics serves, for
// callers that need to inspect it in-process rather than over HTTP.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.prom.Gather()
}

// Start serves the exposition endpoint on addr in the background. A second call is a
// documented no-op per spec §4.1 ("one background HTTP listener per process").
func (r *Registry) Start(addr string) error {
	var err error
	r.startedOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{}))
		r.server = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		var ln net.Listener
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return
		}
		r.listening = true
		go func() {
			if serveErr := r.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
				logrus.WithField("component", "metrics").WithError(serveErr).Error("metrics server stopped")
			}
		}()
	})
	return err
}

// Shutdown gracefully stops the exposition listener, if one was started.
func (r *Registry) Shutdown(ctx context.Context) error {
	if !r.listening || r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
